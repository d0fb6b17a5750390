package _202608241103_bootstrapClaims

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS faucet_claims (
			requester_address varchar(255) NOT NULL,
			target_account varchar(255) NOT NULL,
			state varchar(32) NOT NULL,
			last_claim_at timestamp with time zone NOT NULL,
			created_at timestamp with time zone DEFAULT current_timestamp,
			updated_at timestamp with time zone DEFAULT NULL,
			PRIMARY KEY (requester_address, target_account)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_faucet_claims_last_claim_at ON faucet_claims(last_claim_at)`,
	}

	for _, query := range queries {
		res := grm.Exec(query)
		if res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202608241103_bootstrapClaims"
}
