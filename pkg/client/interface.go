package client

import (
	"context"

	"github.com/menta2k/calorie-analyzer/pkg/types"
)

// VisionClient performs exactly one remote generation call and returns the
// model's raw text. Failures are reported as *types.NetworkError or
// *types.MalformedResponseError.
type VisionClient interface {
	GenerateContent(ctx context.Context, req types.AnalysisRequest) (string, error)
}
