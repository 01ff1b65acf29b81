// Package presenter turns analysis results and errors into user-facing text
package presenter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/menta2k/calorie-analyzer/pkg/types"
)

const (
	MsgTooLarge       = "파일 크기가 너무 큽니다. 10MB 이하의 이미지를 선택해주세요."
	MsgUnsupported    = "이미지 파일만 업로드 가능합니다."
	MsgUndecodable    = "이미지를 읽을 수 없습니다."
	MsgNoImage        = "분석할 이미지가 없습니다."
	MsgNotConfigured  = "API 키가 설정되지 않았습니다. 설정 파일 또는 GEMINI_API_KEY 환경 변수를 확인해주세요."
	MsgInvalidKey     = "API 키가 올바르지 않습니다. 설정 파일의 API 키를 확인해주세요."
	MsgNetwork        = "API 서버에 연결할 수 없습니다. 네트워크 연결을 확인해주세요."
	MsgGeneric        = "이미지 분석 중 오류가 발생했습니다. 다시 시도해주세요."
	MsgFallbackNotice = "⚠️ AI 응답을 해석하지 못해 일반적인 평균값으로 추정했습니다."
	MsgCopied         = "결과가 클립보드에 복사되었습니다!"
	MsgCopyFailed     = "클립보드 복사에 실패했습니다. 아래 내용을 직접 복사해주세요."

	DeviceMobile  = "모바일"
	DeviceDesktop = "데스크톱"
)

const remediationHints = `해결 방법:
1. GEMINI_API_KEY 환경 변수 또는 .env 파일에 API 키를 설정하세요
2. 설정 파일의 provider.api_key 값을 확인하세요 (calorie-analyzer config show)
3. YOUR_API_KEY_HERE 자리표시자를 실제 키로 바꾸세요`

// Diagnostics is environment context appended to configuration errors when
// Debug is set. It never contains the credential itself.
type Diagnostics struct {
	Debug             bool
	CredentialPresent bool
	ConfigLoaded      bool
	ConfigPath        string
	DeviceClass       string
}

// DeviceClass infers whether the process runs on a mobile platform
func DeviceClass() string {
	switch runtime.GOOS {
	case "android", "ios":
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

// ErrorMessage renders err for the user. Configuration-class errors get
// remediation hints and, in debug mode, diagnostics after the base message.
func ErrorMessage(err error, diag Diagnostics) string {
	base, configClass := baseMessage(err)
	if !configClass {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")
	b.WriteString(remediationHints)

	if diag.Debug {
		device := diag.DeviceClass
		if device == "" {
			device = DeviceClass()
		}
		b.WriteString("\n\n[디버그 정보]")
		fmt.Fprintf(&b, "\n- API 키 존재: %t", diag.CredentialPresent)
		fmt.Fprintf(&b, "\n- Config 로드됨: %t", diag.ConfigLoaded)
		if diag.ConfigPath != "" {
			fmt.Fprintf(&b, "\n- 설정 파일: %s", diag.ConfigPath)
		}
		fmt.Fprintf(&b, "\n- 디바이스: %s", device)
	}
	return b.String()
}

func baseMessage(err error) (string, bool) {
	var (
		validationErr *types.ValidationError
		configErr     *types.ConfigurationError
		noImageErr    *types.NoImageError
		networkErr    *types.NetworkError
	)
	switch {
	case err == nil:
		return "", false
	case errors.As(err, &validationErr):
		switch validationErr.Reason {
		case types.ReasonTooLarge:
			return MsgTooLarge, false
		case types.ReasonUnsupportedType:
			return MsgUnsupported, false
		default:
			return MsgUndecodable, false
		}
	case errors.As(err, &configErr):
		return MsgNotConfigured, true
	case errors.As(err, &noImageErr):
		return MsgNoImage, false
	case errors.As(err, &networkErr):
		if isCredentialRejection(networkErr) {
			return MsgInvalidKey, true
		}
		if networkErr.StatusCode != 0 {
			return fmt.Sprintf("%s (HTTP %d %s)", MsgNetwork, networkErr.StatusCode, statusText(networkErr)), false
		}
		return MsgNetwork, false
	default:
		return MsgGeneric, false
	}
}

// isCredentialRejection recognizes the API refusing the key. Gemini answers an
// invalid key with 400 and an "API key not valid" message.
func isCredentialRejection(e *types.NetworkError) bool {
	switch e.StatusCode {
	case 401, 403:
		return true
	case 400:
		return strings.Contains(strings.ToLower(e.Message), "api key")
	}
	return false
}

func statusText(e *types.NetworkError) string {
	if e.Status != "" {
		return e.Status
	}
	return "error"
}

// Render writes a terminal view of result. Empty calculation steps and
// exercise lists are omitted.
func Render(w io.Writer, result types.AnalysisResult) error {
	var b strings.Builder

	b.WriteString("🍽️ 칼로리 분석 결과\n")
	if result.IsFallback() {
		b.WriteString(MsgFallbackNotice + "\n")
	}

	if len(result.Foods) > 0 {
		b.WriteString("\n📋 인식된 음식\n")
		for _, food := range result.Foods {
			fmt.Fprintf(&b, "  • %s  %skcal\n", foodLabel(food), formatNumber(food.Calories))
		}
	}

	fmt.Fprintf(&b, "\n🔥 총 예상 칼로리: %skcal\n", formatNumber(result.TotalCalories))

	if len(result.CalculationProcess) > 0 {
		b.WriteString("\n🔍 계산 과정\n")
		for _, step := range result.CalculationProcess {
			fmt.Fprintf(&b, "  - %s\n", step)
		}
	}

	if len(result.Exercises) > 0 {
		b.WriteString("\n🏃‍♀️ 칼로리 소모 운동량\n")
		for _, ex := range result.Exercises {
			fmt.Fprintf(&b, "  • %s  %s\n", ex.Name, ex.Duration)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJSON writes result in the model's wire shape
func RenderJSON(w io.Writer, result types.AnalysisResult) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ClipboardText serializes result with the fixed export template. The food
// line is always "• name portion: Nkcal", so an empty portion leaves a space
// before the colon.
func ClipboardText(result types.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("🍽️ 칼로리 분석 결과\n\n")

	if len(result.Foods) > 0 {
		b.WriteString("📋 인식된 음식:\n")
		for _, food := range result.Foods {
			fmt.Fprintf(&b, "• %s %s: %skcal\n", food.Name, food.Portion, formatNumber(food.Calories))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "🔥 총 예상 칼로리: %skcal\n\n", formatNumber(result.TotalCalories))

	if len(result.Exercises) > 0 {
		b.WriteString("🏃‍♀️ 칼로리 소모 운동량:\n")
		for _, ex := range result.Exercises {
			fmt.Fprintf(&b, "• %s: %s\n", ex.Name, ex.Duration)
		}
	}
	return b.String()
}

func foodLabel(food types.FoodItem) string {
	if food.Portion == "" {
		return food.Name
	}
	return food.Name + " " + food.Portion
}

// formatNumber prints 350 as "350" and 12.5 as "12.5"
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
