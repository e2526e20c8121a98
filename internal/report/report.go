package report

import (
	"encoding/json"
	"os"

	"example.com/fitdec/internal/fit"
)

func SaveSummaryJSON(sum fit.Summary, out string) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadSummaryJSON(path string) (fit.Summary, error) {
	var sum fit.Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return sum, err
	}
	err = json.Unmarshal(b, &sum)
	return sum, err
}
