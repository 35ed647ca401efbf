package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/skill-verifier/internal/types"
)

// Create inserts a record and returns its ID. record.ID and record.CreatedAt
// are filled from the stored row.
func (db *DB) Create(ctx context.Context, record *types.VerificationRecord) (int64, error) {
	claimedJSON, err := json.Marshal(nonNil(record.ClaimedSkills))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal resume skills: %w", err)
	}
	demonstratedJSON, err := json.Marshal(nonNil(record.DemonstratedSkills))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal github skills: %w", err)
	}
	resultJSON, err := json.Marshal(record.Result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal verification result: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO skill_verifications
		   (github_username, document_fingerprint, resume_file_name,
		    resume_skills, github_skills, verification_result, verification_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		record.SubjectUsername, record.DocumentFingerprint, record.DocumentName,
		claimedJSON, demonstratedJSON, resultJSON, record.IntegrityHash,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create verification record: %w", err)
	}
	return record.ID, nil
}

// GetByID returns the record with id, or ErrRecordNotFound
func (db *DB) GetByID(ctx context.Context, id int64) (*types.VerificationRecord, error) {
	var record types.VerificationRecord
	var claimedJSON, demonstratedJSON, resultJSON []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, github_username, document_fingerprint, resume_file_name,
		        resume_skills, github_skills, verification_result, verification_hash, created_at
		 FROM skill_verifications
		 WHERE id = $1`,
		id,
	).Scan(&record.ID, &record.SubjectUsername, &record.DocumentFingerprint, &record.DocumentName,
		&claimedJSON, &demonstratedJSON, &resultJSON, &record.IntegrityHash, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get verification record %d: %w", id, err)
	}

	if err := json.Unmarshal(claimedJSON, &record.ClaimedSkills); err != nil {
		return nil, fmt.Errorf("failed to decode resume skills: %w", err)
	}
	if err := json.Unmarshal(demonstratedJSON, &record.DemonstratedSkills); err != nil {
		return nil, fmt.Errorf("failed to decode github skills: %w", err)
	}
	if err := json.Unmarshal(resultJSON, &record.Result); err != nil {
		return nil, fmt.Errorf("failed to decode verification result: %w", err)
	}
	return &record, nil
}

func nonNil(list types.SkillList) types.SkillList {
	if list == nil {
		return types.SkillList{}
	}
	return list
}
