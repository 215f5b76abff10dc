package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON fixes common JSON defects in model outputs: missing key quotes,
// single quotes, unclosed brackets, trailing commas, markdown code fences.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ExtractJSONObject returns the first top-level {...} block embedded in free
// text, or "" when none is found. Used as the last parsing tier when a model
// wraps its JSON answer in prose.
func ExtractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// SmartParse tries progressively more lenient strategies to unmarshal model
// output into schema: strict JSON, then repaired JSON, then Hjson, then the
// first embedded JSON object.
func SmartParse(input string, schema interface{}) error {
	if err := json.Unmarshal([]byte(input), schema); err == nil {
		return nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return nil
		}
	}

	if err := hjson.Unmarshal([]byte(input), schema); err == nil {
		return nil
	}

	if embedded := ExtractJSONObject(input); embedded != "" {
		if err := json.Unmarshal([]byte(embedded), schema); err == nil {
			return nil
		}
		if repaired, err := RepairJSON(embedded); err == nil {
			if err := json.Unmarshal([]byte(repaired), schema); err == nil {
				return nil
			}
		}
	}

	return fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed")
}
