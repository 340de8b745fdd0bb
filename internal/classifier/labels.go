package classifier

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadLabels reads class labels. A .json file is read as a model config with
// an "id2label" map (or as a bare index -> label map); anything else is read
// one label per line, blank lines skipped.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: labels path comes from config
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parseID2Label(data)
	}

	var labels []string
	sc := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			labels = append(labels, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, errors.New("labels file is empty")
	}
	return labels, nil
}

func parseID2Label(data []byte) ([]string, error) {
	var wrapped struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse labels json: %w", err)
	}
	m := wrapped.ID2Label
	if len(m) == 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, errors.New("labels json has no id2label map")
		}
	}
	if len(m) == 0 {
		return nil, errors.New("labels json has no id2label map")
	}

	labels := make([]string, len(m))
	for k, v := range m {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("invalid label index %q", k)
		}
		labels[idx] = strings.TrimSpace(v)
	}
	return labels, nil
}
