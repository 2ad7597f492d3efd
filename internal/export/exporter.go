// AngelaMos | 2026
// exporter.go

package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/basementlabs/memberd/internal/member"
	"github.com/basementlabs/memberd/internal/tariff"
)

type MemberLister interface {
	ListAll(ctx context.Context) ([]member.Member, error)
}

type TariffSource interface {
	GetByID(ctx context.Context, id string) (*tariff.Tariff, error)
}

// PaidUntilSource resolves the end of a member's last paid interval. The
// second return is false when the member has never paid.
type PaidUntilSource interface {
	PaidUntil(ctx context.Context, memberID string) (time.Time, bool, error)
}

const dateLayout = "2006-01-02"

// rosterHeader is the fixed column list agreed with the accounting side.
// Order matters to the people consuming the file; do not reorder.
var rosterHeader = []string{
	"id",
	"first_name",
	"last_name",
	"email",
	"comment",
	"billing_account",
	"monthly_amount",
	"sign_in_count",
	"last_sign_in_at",
	"created_at",
	"chat_username",
	"suspended",
	"banned",
	"github_handle",
	"learner",
	"guarantor1_id",
	"guarantor2_id",
	"paid_until",
}

// Exporter renders the full member roster as CSV or XLSX.
type Exporter struct {
	members MemberLister
	tariffs TariffSource
	engine  PaidUntilSource
}

func NewExporter(
	members MemberLister,
	tariffs TariffSource,
	engine PaidUntilSource,
) *Exporter {
	return &Exporter{
		members: members,
		tariffs: tariffs,
		engine:  engine,
	}
}

func (e *Exporter) buildRows(ctx context.Context) ([][]string, error) {
	members, err := e.members.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export roster: %w", err)
	}

	// Tariffs are few; one lookup each with a local memo beats a join here.
	monthly := make(map[string]int64)

	rows := make([][]string, 0, len(members))
	for i := range members {
		m := &members[i]

		var monthlyAmount string
		if m.TariffID != nil {
			cents, ok := monthly[*m.TariffID]
			if !ok {
				t, err := e.tariffs.GetByID(ctx, *m.TariffID)
				if err != nil {
					return nil, fmt.Errorf("export roster: %w", err)
				}
				cents = t.MonthlyCents
				monthly[*m.TariffID] = cents
			}
			monthlyAmount = formatCents(cents)
		}

		paidUntil, ok, err := e.engine.PaidUntil(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("export roster: %w", err)
		}
		var paidUntilStr string
		if ok {
			paidUntilStr = paidUntil.Format(dateLayout)
		}

		rows = append(rows, []string{
			m.ID,
			m.FirstName,
			m.LastName,
			m.Email,
			m.Comment,
			m.BillingAccount,
			monthlyAmount,
			strconv.Itoa(m.SignInCount),
			formatTimePtr(m.LastSignInAt),
			m.CreatedAt.Format(dateLayout),
			m.ChatUsername,
			strconv.FormatBool(m.Suspended),
			strconv.FormatBool(m.Banned),
			m.GithubHandle,
			strconv.FormatBool(m.Learner),
			strPtr(m.Guarantor1ID),
			strPtr(m.Guarantor2ID),
			paidUntilStr,
		})
	}

	return rows, nil
}

func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer) error {
	rows, err := e.buildRows(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(rosterHeader); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}

	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}

	return nil
}

func (e *Exporter) WriteXLSX(ctx context.Context, w io.Writer) error {
	rows, err := e.buildRows(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Members"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	header := make([]any, len(rosterHeader))
	for i, h := range rosterHeader {
		header[i] = h
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}

	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if err := setRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}

	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}

	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}

	return nil
}

// formatCents renders integer minor units as a decimal amount string.
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func strPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
