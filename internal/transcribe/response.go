package transcribe

import (
	"encoding/json"
	"fmt"
	"math"
)

type response struct {
	Results []struct {
		Alternatives []struct {
			Transcript *string  `json:"transcript"`
			Confidence *float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// ParseResponse extracts results[0].alternatives[0] from a service body.
func ParseResponse(data []byte) (Result, error) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Results) == 0 {
		return Result{}, fmt.Errorf("%w: no results", ErrMalformedResponse)
	}
	if len(resp.Results[0].Alternatives) == 0 {
		return Result{}, fmt.Errorf("%w: no alternatives", ErrMalformedResponse)
	}
	alt := resp.Results[0].Alternatives[0]
	if alt.Transcript == nil {
		return Result{}, fmt.Errorf("%w: transcript missing", ErrMalformedResponse)
	}
	if alt.Confidence == nil {
		return Result{}, fmt.Errorf("%w: confidence missing", ErrMalformedResponse)
	}
	conf := *alt.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return Result{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedResponse, conf)
	}
	return Result{Transcript: *alt.Transcript, Confidence: conf}, nil
}
