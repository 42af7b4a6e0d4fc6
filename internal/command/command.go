// Package command parses coordinator command lines into typed commands and
// executes them against the ledger.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bft-labs/ledgerworker/internal/domain"
)

// Separator splits the tokens of a command line.
const Separator = "|"

// ErrUnknownOp is returned by Parse for unrecognized or malformed lines.
var ErrUnknownOp = errors.New("command: unknown operation")

// Command is one parsed coordinator request. The set of implementations is
// closed; Interpreter switches over all of them.
type Command interface {
	command()
}

// CreateAccount opens an account with an initial balance.
type CreateAccount struct {
	AccountID uint64
	Balance   decimal.Decimal
}

// QueryAccount reads one account.
type QueryAccount struct {
	AccountID uint64
}

// Debit withdraws from an account.
type Debit struct {
	AccountID uint64
	Amount    decimal.Decimal
}

// Credit deposits into an account.
type Credit struct {
	AccountID uint64
	Amount    decimal.Decimal
}

// RecordTx logs a transfer the coordinator already settled.
type RecordTx struct {
	From   uint64
	To     uint64
	Amount decimal.Decimal
}

// CreateLoan attaches a loan to an account.
type CreateLoan struct {
	AccountID uint64
	Amount    decimal.Decimal
	Pending   decimal.Decimal
}

// PayLoan pays part of a loan.
type PayLoan struct {
	AccountID uint64
	LoanID    uint64
	Amount    decimal.Decimal
}

// LoanStatus reports the loans of an account.
type LoanStatus struct {
	AccountID uint64
}

// Audit sums every balance on the worker.
type Audit struct{}

func (CreateAccount) command() {}
func (QueryAccount) command()  {}
func (Debit) command()         {}
func (Credit) command()        {}
func (RecordTx) command()      {}
func (CreateLoan) command()    {}
func (PayLoan) command()       {}
func (LoanStatus) command()    {}
func (Audit) command()         {}

type parseFunc func(args []string) (Command, error)

type opDef struct {
	arity int
	parse parseFunc
}

var ops = map[string]opDef{
	"CREATE_ACCOUNT": {2, func(a []string) (Command, error) {
		id, err := parseID(a[0])
		if err != nil {
			return nil, err
		}
		bal, err := parseAmount(a[1])
		if err != nil {
			return nil, err
		}
		return CreateAccount{AccountID: id, Balance: bal}, nil
	}},
	"CONSULTAR_CUENTA": {1, parseQuery},
	"QUERY_ACCOUNT":    {1, parseQuery},
	"DEBIT": {2, func(a []string) (Command, error) {
		id, amount, err := parseIDAmount(a)
		if err != nil {
			return nil, err
		}
		return Debit{AccountID: id, Amount: amount}, nil
	}},
	"CREDIT": {2, func(a []string) (Command, error) {
		id, amount, err := parseIDAmount(a)
		if err != nil {
			return nil, err
		}
		return Credit{AccountID: id, Amount: amount}, nil
	}},
	"RECORD_TX": {3, func(a []string) (Command, error) {
		from, err := parseID(a[0])
		if err != nil {
			return nil, err
		}
		to, amount, err := parseIDAmount(a[1:])
		if err != nil {
			return nil, err
		}
		return RecordTx{From: from, To: to, Amount: amount}, nil
	}},
	"CREAR_PRESTAMO":       {3, parseCreateLoan},
	"CREATE_LOAN":          {3, parseCreateLoan},
	"PAGAR_PRESTAMO":       {3, parsePayLoan},
	"PAY_LOAN":             {3, parsePayLoan},
	"ESTADO_PAGO_PRESTAMO": {1, parseLoanStatus},
	"LOAN_STATUS":          {1, parseLoanStatus},
	"ARQUEO":               {0, parseAudit},
	"AUDIT":                {0, parseAudit},
}

// Parse turns one command line, without its terminator, into a Command.
// Any line that does not match a known operation and its arity exactly
// yields ErrUnknownOp. Amounts that are negative or out of bounds yield
// domain.ErrInvalidAmount.
func Parse(line string) (Command, error) {
	tokens := strings.Split(strings.TrimSpace(line), Separator)
	op, ok := ops[tokens[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, tokens[0])
	}
	args := tokens[1:]
	if len(args) != op.arity {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrUnknownOp, tokens[0], op.arity, len(args))
	}
	return op.parse(args)
}

func parseQuery(a []string) (Command, error) {
	id, err := parseID(a[0])
	if err != nil {
		return nil, err
	}
	return QueryAccount{AccountID: id}, nil
}

func parseCreateLoan(a []string) (Command, error) {
	id, err := parseID(a[0])
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(a[1])
	if err != nil {
		return nil, err
	}
	pending, err := parseAmount(a[2])
	if err != nil {
		return nil, err
	}
	return CreateLoan{AccountID: id, Amount: amount, Pending: pending}, nil
}

func parsePayLoan(a []string) (Command, error) {
	acct, err := parseID(a[0])
	if err != nil {
		return nil, err
	}
	loan, amount, err := parseIDAmount(a[1:])
	if err != nil {
		return nil, err
	}
	return PayLoan{AccountID: acct, LoanID: loan, Amount: amount}, nil
}

func parseLoanStatus(a []string) (Command, error) {
	id, err := parseID(a[0])
	if err != nil {
		return nil, err
	}
	return LoanStatus{AccountID: id}, nil
}

func parseAudit([]string) (Command, error) { return Audit{}, nil }

func parseIDAmount(a []string) (uint64, decimal.Decimal, error) {
	id, err := parseID(a[0])
	if err != nil {
		return 0, decimal.Decimal{}, err
	}
	amount, err := parseAmount(a[1])
	if err != nil {
		return 0, decimal.Decimal{}, err
	}
	return id, amount, nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad id %q", ErrUnknownOp, s)
	}
	return id, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: bad amount %q", ErrUnknownOp, s)
	}
	if err := domain.CheckAmount(d); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", err, s)
	}
	return d, nil
}
