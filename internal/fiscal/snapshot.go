package fiscal

import (
	"encoding/hex"
	"encoding/json"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"

	"github.com/solvent-hq/solvent/internal/ledger"
)

type snapshotContent struct {
	Lines       []SnapshotLine
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Balanced    bool
	Checksum    string
}

// buildSnapshotContent converts trial balance rows into the stored
// snapshot payload. The checksum hashes the serialized lines so later
// reads can detect tampering.
func buildSnapshotContent(rows []ledger.TrialBalanceRow) (snapshotContent, error) {
	content := snapshotContent{Lines: make([]SnapshotLine, 0, len(rows))}
	for _, row := range rows {
		content.Lines = append(content.Lines, SnapshotLine{
			AccountID:   row.AccountID,
			AccountCode: row.AccountCode,
			AccountName: row.AccountName,
			AccountType: string(row.AccountType),
			Debit:       row.Debit,
			Credit:      row.Credit,
		})
		content.TotalDebit = content.TotalDebit.Add(row.Debit)
		content.TotalCredit = content.TotalCredit.Add(row.Credit)
	}
	content.Balanced = content.TotalDebit.Equal(content.TotalCredit)
	payload, err := json.Marshal(content.Lines)
	if err != nil {
		return snapshotContent{}, err
	}
	sum := blake2b.Sum256(payload)
	content.Checksum = hex.EncodeToString(sum[:])
	return content, nil
}

// VerifySnapshot recomputes the checksum over the stored lines and
// reports whether it still matches.
func VerifySnapshot(snap TrialBalanceSnapshot) (bool, error) {
	payload, err := json.Marshal(snap.Lines)
	if err != nil {
		return false, err
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:]) == snap.Checksum, nil
}
