package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/ledgerworker/internal/adapters/fs"
	"github.com/bft-labs/ledgerworker/internal/domain"
	"github.com/bft-labs/ledgerworker/internal/ledger"
)

func newInterpreter(t *testing.T) *Interpreter {
	t.Helper()
	l, err := ledger.Open(context.Background(), fs.NewSnapshotFileRepository(t.TempDir(), "t"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return NewInterpreter(l, nil)
}

// run feeds lines in order and returns the responses.
func run(t *testing.T, in *Interpreter, lines ...string) []string {
	t.Helper()
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, in.Apply(context.Background(), line))
	}
	return out
}

func TestInterpreter_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []string
	}{
		{
			name:  "debit until insufficient",
			lines: []string{"CREATE_ACCOUNT|1|100.0", "DEBIT|1|30", "DEBIT|1|1000"},
			want:  []string{"OK", "OK", "ERROR|SaldoInsuficiente"},
		},
		{
			name:  "unknown account",
			lines: []string{"CONSULTAR_CUENTA|999", "DEBIT|999|1", "CREDIT|999|1", "ESTADO_PAGO_PRESTAMO|999"},
			want:  []string{"ERROR|NoExiste", "ERROR|NoExiste", "ERROR|NoExiste", "ERROR|NoExiste"},
		},
		{
			name:  "loan paid in full",
			lines: []string{"CREATE_ACCOUNT|1|0", "CREAR_PRESTAMO|1|500|500", "PAGAR_PRESTAMO|1|1|500", "PAGAR_PRESTAMO|1|1|1"},
			want:  []string{"OK", "OK|LoanID:1", "OK|MontoRestante:0", "ERROR|MontoExcedeMontoPendiente"},
		},
		{
			name:  "partial payments",
			lines: []string{"CREATE_ACCOUNT|1|0", "CREATE_LOAN|1|100|100", "PAY_LOAN|1|1|40.5", "PAY_LOAN|1|1|60", "PAY_LOAN|1|1|59.5"},
			want:  []string{"OK", "OK|LoanID:1", "OK|MontoRestante:59.5", "ERROR|MontoExcedeMontoPendiente", "OK|MontoRestante:0"},
		},
		{
			name:  "loan ids are unique across accounts",
			lines: []string{"CREATE_ACCOUNT|1|0", "CREATE_ACCOUNT|2|0", "CREAR_PRESTAMO|1|10|10", "CREAR_PRESTAMO|2|10|10", "PAGAR_PRESTAMO|1|2|1"},
			want:  []string{"OK", "OK", "OK|LoanID:1", "OK|LoanID:2", "ERROR|PrestamoNoExiste"},
		},
		{
			name:  "duplicate account",
			lines: []string{"CREATE_ACCOUNT|5|1", "CREATE_ACCOUNT|5|2"},
			want:  []string{"OK", "ERROR|YaExiste"},
		},
		{
			name:  "invalid amounts",
			lines: []string{"CREATE_ACCOUNT|1|-1", "CREATE_ACCOUNT|1|1", "DEBIT|1|-5", "CREAR_PRESTAMO|1|10|20"},
			want:  []string{"ERROR|MontoInvalido", "OK", "ERROR|MontoInvalido", "ERROR|MontoInvalido"},
		},
		{
			name:  "record tx",
			lines: []string{"CREATE_ACCOUNT|1|10", "RECORD_TX|1|42|5", "RECORD_TX|41|42|5"},
			want:  []string{"OK", "OK", "ERROR|NoExiste"},
		},
		{
			name:  "audit",
			lines: []string{"ARQUEO", "CREATE_ACCOUNT|1|100.5", "CREATE_ACCOUNT|2|0.5", "AUDIT"},
			want:  []string{"OK|0|0", "OK", "OK", "OK|101|2"},
		},
		{
			name:  "unknown and malformed",
			lines: []string{"HELLO", "DEBIT|1", "DEBIT|a|1", ""},
			want:  []string{"ERROR|UnknownOp", "ERROR|UnknownOp", "ERROR|UnknownOp", "ERROR|UnknownOp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(t, newInterpreter(t), tt.lines...))
		})
	}
}

func TestInterpreter_UnboundedAmountsAnswerQuickly(t *testing.T) {
	in := newInterpreter(t)
	run(t, in, "CREATE_ACCOUNT|1|100")

	for _, line := range []string{"DEBIT|1|1e-50000000", "CREDIT|1|1e50000000"} {
		start := time.Now()
		assert.Equal(t, "ERROR|MontoInvalido", in.Apply(context.Background(), line), line)
		assert.Less(t, time.Since(start), time.Second, line)
	}
	assert.Equal(t, []string{"OK|100|1"}, run(t, in, "ARQUEO"))
}

func TestInterpreter_QueryAccountPayload(t *testing.T) {
	in := newInterpreter(t)
	run(t, in, "CREATE_ACCOUNT|1|100.0", "DEBIT|1|30", "CREAR_PRESTAMO|1|50|50")

	resp := in.Apply(context.Background(), "CONSULTAR_CUENTA|1")
	require.True(t, len(resp) > 3 && resp[:3] == "OK|", resp)

	var acc domain.Account
	require.NoError(t, json.Unmarshal([]byte(resp[3:]), &acc))
	assert.Equal(t, uint64(1), acc.ID)
	assert.Equal(t, "70", acc.Balance.String())
	assert.Equal(t, []uint64{1}, acc.Loans)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(resp[3:]), &raw))
	assert.Contains(t, raw, "id")
	assert.Contains(t, raw, "balance")
	assert.Contains(t, raw, "loans")
}

func TestInterpreter_LoanStatusPayload(t *testing.T) {
	in := newInterpreter(t)
	run(t, in, "CREATE_ACCOUNT|1|0", "CREAR_PRESTAMO|1|500|500", "PAGAR_PRESTAMO|1|1|200")

	assert.Equal(t,
		`OK|[{"id_prestamo":1,"monto_total":"500","monto_pagado":"200","monto_pendiente":"300","estado":"Active"}]`,
		in.Apply(context.Background(), "ESTADO_PAGO_PRESTAMO|1"))

	run(t, in, "CREATE_ACCOUNT|2|0")
	assert.Equal(t, "OK|[]", in.Apply(context.Background(), "LOAN_STATUS|2"))
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.ErrAccountNotFound, CodeNotFound},
		{domain.ErrAccountExists, CodeExists},
		{domain.ErrInsufficientFunds, CodeInsufficient},
		{domain.ErrLoanNotFound, CodeLoanNotFound},
		{domain.ErrPaymentExceedsPending, CodeExceedsPending},
		{domain.ErrInvalidAmount, CodeInvalidAmount},
		{ErrUnknownOp, CodeUnknownOp},
		{domain.ErrPersistence, CodePersistenceError},
		{ledger.ErrClosed, CodePersistenceError},
		{context.Canceled, CodePersistenceError},
	}
	for _, tt := range tests {
		wrapped := errors.Join(errors.New("context"), tt.err)
		assert.Equal(t, tt.want, Code(wrapped), "%v", tt.err)
	}
}
