package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/calorie-analyzer/pkg/types"
)

var (
	reFence    = regexp.MustCompile("```(?:json|JSON)?[ \t]*\\r?\\n?")
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// Parser converts the model's raw answer into an AnalysisResult
type Parser struct {
	logger *zap.Logger
}

// New creates a parser that logs fallbacks to logger
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse never fails: an answer that does not decode into the expected shape
// yields Fallback().
func Parse(raw string) types.AnalysisResult {
	return New(nil).Parse(raw)
}

// Parse never fails: an answer that does not decode into the expected shape
// yields Fallback().
func (p *Parser) Parse(raw string) types.AnalysisResult {
	result, err := Decode(raw)
	if err != nil {
		p.logger.Warn("model answer not parseable, using fallback result",
			zap.Error(err), zap.Int("length", len(raw)))
		return Fallback()
	}
	return result
}

// wireResult mirrors the answer JSON with pointers so absent keys are visible
type wireResult struct {
	Foods              *[]types.FoodItem `json:"foods"`
	TotalCalories      *float64          `json:"totalCalories"`
	CalculationProcess []string          `json:"calculationProcess"`
	Exercises          []types.Exercise  `json:"exercises"`
}

// Decode strictly decodes a model answer. Unlike Parse it reports why the
// answer does not conform. Only fences are removed from well-formed JSON;
// comment and trailing-comma repairs apply when the strict decode fails.
func Decode(raw string) (types.AnalysisResult, error) {
	var w wireResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &w); err != nil {
		repaired := SanitizeModelJSON(raw)
		if !strings.HasPrefix(repaired, "{") {
			return types.AnalysisResult{}, errors.New("no JSON object in answer")
		}
		w = wireResult{}
		if err := json.Unmarshal([]byte(repaired), &w); err != nil {
			return types.AnalysisResult{}, fmt.Errorf("failed to decode answer: %w", err)
		}
	}
	if w.Foods == nil && w.TotalCalories == nil {
		return types.AnalysisResult{}, errors.New("answer has neither foods nor totalCalories")
	}

	result := types.AnalysisResult{
		Foods:              []types.FoodItem{},
		CalculationProcess: w.CalculationProcess,
		Exercises:          w.Exercises,
		Source:             types.SourceModel,
	}
	if w.Foods != nil && *w.Foods != nil {
		result.Foods = *w.Foods
	}
	if w.TotalCalories != nil {
		result.TotalCalories = *w.TotalCalories
	}
	if result.CalculationProcess == nil {
		result.CalculationProcess = []string{}
	}
	if result.Exercises == nil {
		result.Exercises = []types.Exercise{}
	}

	if result.TotalCalories < 0 {
		return types.AnalysisResult{}, fmt.Errorf("negative totalCalories %v", result.TotalCalories)
	}
	for i, f := range result.Foods {
		if f.Calories < 0 {
			return types.AnalysisResult{}, fmt.Errorf("food %d (%s) has negative calories %v", i, f.Name, f.Calories)
		}
	}
	return result, nil
}

// Fallback returns the fixed generic estimate used when the answer cannot be parsed.
// Every call returns an equal, independently allocated value.
func Fallback() types.AnalysisResult {
	return types.AnalysisResult{
		Foods: []types.FoodItem{
			{Name: "인식된 음식", Calories: 300, Portion: "1인분"},
		},
		TotalCalories: 300,
		CalculationProcess: []string{
			"AI가 이미지를 분석했습니다",
			"일반적인 음식의 평균 칼로리를 계산했습니다",
			"약 300kcal로 추정됩니다",
		},
		Exercises: []types.Exercise{
			{Name: "빠른 걷기", Duration: "45분", Type: "유산소"},
			{Name: "달리기", Duration: "25분", Type: "유산소"},
		},
		Source: types.SourceFallback,
	}
}

// SanitizeModelJSON removes code fences, comments, and trailing commas, and keeps
// only the outermost {...} of the answer.
func SanitizeModelJSON(raw string) string {
	raw = stripFences(raw)

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func stripFences(raw string) string {
	raw = reFence.ReplaceAllString(raw, "")
	raw = strings.TrimSpace(raw)
	return strings.TrimSpace(strings.Trim(raw, "`"))
}
