package analysis

// DefaultPrompt asks for foods, the calculation steps, and exercises as one JSON object
const DefaultPrompt = `이 음식 이미지를 분석하여 다음 정보를 정확한 JSON 형식으로 제공해주세요:

1. 음식 종류와 각각의 예상 칼로리 (kcal)
2. 칼로리 계산 과정 (어떤 기준으로 계산했는지)
3. 총 칼로리를 소모하는데 필요한 운동량 (달리기, 걷기, 자전거 타기, 등산 등)

응답은 반드시 다음 JSON 형식을 정확히 따라주세요:
{
  "foods": [
    {
      "name": "음식명",
      "calories": 숫자,
      "portion": "1인분"
    }
  ],
  "totalCalories": 총칼로리숫자,
  "calculationProcess": [
    "계산 과정 설명 1",
    "계산 과정 설명 2"
  ],
  "exercises": [
    {
      "name": "운동명",
      "duration": "시간 (예: 30분, 1시간)",
      "type": "운동 종류"
    }
  ]
}

한국음식의 경우 일반적인 1인분 기준으로, 서양음식의 경우 평균적인 크기로 계산해주세요. 칼로리는 보수적으로 계산하되, 너무 엄격하지 않게 해주세요.`
