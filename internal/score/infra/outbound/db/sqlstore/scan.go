package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	"github.com/davicafu/scoreregistry/internal/shared/infra/platform/db/sqldb"
)

const (
	scoreColumns = "id, community_id, address, score, status, last_score_timestamp, evidence, error"
	eventColumns = "id, community_id, address, action, score, evidence, created_at"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScore(row rowScanner) (*domain.Score, error) {
	var s domain.Score
	var evidence, errMsg sql.NullString
	if err := row.Scan(
		&s.ID, &s.CommunityID, &s.Address, &s.Score, &s.Status,
		sqldb.ScanTime(&s.LastScoreTimestamp), &evidence, &errMsg,
	); err != nil {
		return nil, err
	}
	if err := decodeEvidence(evidence, &s.Evidence); err != nil {
		return nil, fmt.Errorf("invalid evidence in score %d: %w", s.ID, err)
	}
	if errMsg.Valid {
		s.Error = &errMsg.String
	}
	return &s, nil
}

func scanEvent(row rowScanner) (*domain.ScoreEvent, error) {
	var e domain.ScoreEvent
	var evidence sql.NullString
	if err := row.Scan(
		&e.ID, &e.CommunityID, &e.Address, &e.Action, &e.Score, &evidence,
		sqldb.ScanTime(&e.CreatedAt),
	); err != nil {
		return nil, err
	}
	if err := decodeEvidence(evidence, &e.Evidence); err != nil {
		return nil, fmt.Errorf("invalid evidence in score event %d: %w", e.ID, err)
	}
	return &e, nil
}

func scanAll[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func encodeEvidence(evidence map[string]interface{}) (interface{}, error) {
	if evidence == nil {
		return nil, nil
	}
	b, err := json.Marshal(evidence)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evidence: %w", err)
	}
	return string(b), nil
}

func decodeEvidence(raw sql.NullString, dest *map[string]interface{}) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), dest)
}
