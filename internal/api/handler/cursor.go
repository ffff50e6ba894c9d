package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/ehealth-tools/registry-sync/internal/sync/store"
)

func DecodeBatchCursor(cursorStr string) (*store.BatchCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	_, err = fmt.Sscanf(decodedParts[0], "%d", &createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &store.BatchCursor{
		CreatedAt: time.Unix(0, createdAt),
		BatchID:   decodedParts[1],
	}, nil
}

func EncodeBatchCursor(cursor *store.BatchCursor) (string, error) {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.BatchID)
	return base64.StdEncoding.EncodeToString([]byte(cs)), nil
}
