package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// recordingReader remembers the first transport error so parsers can tell
// a broken stream apart from a broken document.
type recordingReader struct {
	r   io.Reader
	err error
}

func (rr *recordingReader) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	if err != nil && err != io.EOF && rr.err == nil {
		rr.err = err
	}
	return n, err
}

// feedError is the element upstream substitutes for the expected payload.
type feedError struct {
	ShouldRetry bool   `xml:"shouldRetry,attr"`
	Text        string `xml:",chardata"`
}

// decodeFeed decodes an XML feed document into doc and classifies any
// failure. A non-nil result means doc must not be used.
func decodeFeed[T any](name string, r io.Reader, doc any, feedErrors func() []feedError) *Result[T] {
	rr := &recordingReader{r: r}
	err := xml.NewDecoder(rr).Decode(doc)

	if rr.err != nil {
		res := Failed[T](OutcomeIOError, &ParserError{
			Message:   fmt.Sprintf("%s: %v", name, rr.err),
			Retryable: true,
			Cause:     ErrCauseReadFailure,
		})
		return &res
	}
	if err != nil {
		if isTruncated(err) {
			res := Failed[T](OutcomeNotDone, &ParserError{
				Message:   fmt.Sprintf("%s: %v", name, err),
				Retryable: true,
				Cause:     ErrCauseTruncated,
			})
			return &res
		}
		res := Failed[T](OutcomeParseError, &ParserError{
			Message:   fmt.Sprintf("%s: %v", name, err),
			Retryable: false,
			Cause:     ErrCauseMalformed,
		})
		return &res
	}

	for _, fe := range feedErrors() {
		if fe.ShouldRetry {
			res := Failed[T](OutcomeMissingCookie, &ParserError{
				Message:   fmt.Sprintf("%s: %s", name, strings.TrimSpace(fe.Text)),
				Retryable: true,
				Cause:     ErrCauseCookieRejected,
			})
			return &res
		}
		res := Failed[T](OutcomeParseError, &ParserError{
			Message:   fmt.Sprintf("%s: %s", name, strings.TrimSpace(fe.Text)),
			Retryable: false,
			Cause:     ErrCauseUpstreamError,
		})
		return &res
	}
	return nil
}

func isTruncated(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var syntaxErr *xml.SyntaxError
	return errors.As(err, &syntaxErr) && syntaxErr.Msg == "unexpected EOF"
}
