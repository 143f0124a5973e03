package classify

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmptyPrompt is returned by LoadPrompt for a blank prompt file.
var ErrEmptyPrompt = errors.New("classify: prompt is empty")

// LoadPrompt 读取系统提示词，内容原样返回
func LoadPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load prompt: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyPrompt, path)
	}
	return string(data), nil
}
