package usage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// ImportResult counts what happened to each input line.
type ImportResult struct {
	Lines      int `json:"lines"`
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// transcriptLine is the subset of a Claude JSONL transcript line that
// carries usage.
type transcriptLine struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
	Cwd       string    `json:"cwd"`
	RequestID string    `json:"requestId"`
	Message   *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage *struct {
			InputTokens              int64 `json:"input_tokens"`
			OutputTokens             int64 `json:"output_tokens"`
			CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
			CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

const maxLineBytes = 16 << 20

// ImportJSONL records the usage lines of a Claude transcript for userID.
// Each message is keyed by its message and request ids, so importing the
// same file twice records nothing new. Lines without usage are skipped.
func ImportJSONL(ctx context.Context, rec *Recorder, r io.Reader, userID int) (ImportResult, error) {
	var res ImportResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		res.Lines++

		var tl transcriptLine
		if err := json.Unmarshal(line, &tl); err != nil {
			rec.logger.Debug("skipping malformed transcript line", zap.Int("line", res.Lines), zap.Error(err))
			res.Skipped++
			continue
		}
		if tl.Message == nil || tl.Message.Usage == nil || tl.Message.Model == "" {
			res.Skipped++
			continue
		}

		e := Event{
			EventName: DefaultEventName,
			SessionID: tl.SessionID,
			Model:     tl.Message.Model,
			TokenCounts: TokenCounts{
				Input:         tl.Message.Usage.InputTokens,
				Output:        tl.Message.Usage.OutputTokens,
				CacheCreation: tl.Message.Usage.CacheCreationInputTokens,
				CacheRead:     tl.Message.Usage.CacheReadInputTokens,
			},
			ProjectPath: tl.Cwd,
			UserID:      userID,
			Timestamp:   tl.Timestamp,
		}
		if tl.Message.ID != "" {
			e.SourceEventKey = "claude:" + tl.Message.ID + ":" + tl.RequestID
		}

		_, inserted, err := rec.Record(ctx, e)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", res.Lines, err)
		}
		if inserted {
			res.Imported++
		} else {
			res.Duplicates++
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read transcript: %w", err)
	}
	return res, nil
}
