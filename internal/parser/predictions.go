package parser

import (
	"encoding/xml"
	"io"
)

type predictionsDoc struct {
	XMLName     xml.Name         `xml:"body"`
	Errors      []feedError      `xml:"Error"`
	Predictions []predictionsFor `xml:"predictions"`
}

type predictionsFor struct {
	RouteTag   string `xml:"routeTag,attr"`
	StopTag    string `xml:"stopTag,attr"`
	Directions []struct {
		Predictions []struct {
			EpochTime int64  `xml:"epochTime,attr"`
			DirTag    string `xml:"dirTag,attr"`
		} `xml:"prediction"`
	} `xml:"direction"`
}

// PredictionsParser reads the XML feed's predictionsForMultiStops document.
// The predictions come back in document order; callers sort them.
type PredictionsParser struct{}

func NewPredictionsParser() PredictionsParser {
	return PredictionsParser{}
}

func (PredictionsParser) Name() string {
	return "predictions"
}

func (p PredictionsParser) Parse(r io.Reader) Result[[]Prediction] {
	var doc predictionsDoc
	if failed := decodeFeed[[]Prediction](p.Name(), r, &doc, func() []feedError { return doc.Errors }); failed != nil {
		return *failed
	}

	predictions := []Prediction{}
	for _, block := range doc.Predictions {
		for _, dir := range block.Directions {
			for _, pred := range dir.Predictions {
				predictions = append(predictions, Prediction{
					RouteTag:     block.RouteTag,
					StopTag:      block.StopTag,
					DirectionTag: pred.DirTag,
					EpochMillis:  pred.EpochTime,
				})
			}
		}
	}
	return Success(predictions)
}
