package plan

import "encoding/json"

type riskRecord struct {
	ToolName string           `json:"tool_name"`
	Risk     RiskLevel        `json:"risk"`
	Rollback RollbackStrategy `json:"rollback"`
}

func marshalSteps(steps []Step) (string, error) {
	b, err := json.Marshal(steps)
	return string(b), err
}

func unmarshalSteps(raw string) ([]Step, error) {
	if raw == "" {
		return nil, nil
	}
	var steps []Step
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

func marshalRisks(steps []Step) (string, error) {
	records := make([]riskRecord, len(steps))
	for i, s := range steps {
		records[i] = riskRecord{ToolName: s.ToolName, Risk: s.Risk, Rollback: s.Rollback}
	}
	b, err := json.Marshal(records)
	return string(b), err
}

func marshalStepResults(results []StepResult) (string, error) {
	if len(results) == 0 {
		return "", nil
	}
	b, err := json.Marshal(results)
	return string(b), err
}

func unmarshalStepResults(raw string) ([]StepResult, error) {
	if raw == "" {
		return nil, nil
	}
	var results []StepResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, err
	}
	return results, nil
}
