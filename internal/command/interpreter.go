package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	logAdapter "github.com/bft-labs/ledgerworker/internal/adapters/log"
	"github.com/bft-labs/ledgerworker/internal/domain"
	"github.com/bft-labs/ledgerworker/internal/ports"
)

// Reason codes sent after ERROR| on the wire.
const (
	CodeUnknownOp        = "UnknownOp"
	CodeNotFound         = "NoExiste"
	CodeExists           = "YaExiste"
	CodeInsufficient     = "SaldoInsuficiente"
	CodeLoanNotFound     = "PrestamoNoExiste"
	CodeExceedsPending   = "MontoExcedeMontoPendiente"
	CodeInvalidAmount    = "MontoInvalido"
	CodePersistenceError = "ErrorPersistencia"
)

// Ledger is the set of ledger operations the interpreter drives.
// *ledger.Ledger implements it.
type Ledger interface {
	CreateAccount(ctx context.Context, id uint64, balance decimal.Decimal) error
	Account(ctx context.Context, id uint64) (domain.Account, error)
	Debit(ctx context.Context, id uint64, amount decimal.Decimal) error
	Credit(ctx context.Context, id uint64, amount decimal.Decimal) error
	RecordTransfer(ctx context.Context, from, to uint64, amount decimal.Decimal) error
	CreateLoan(ctx context.Context, accountID uint64, amount, pending decimal.Decimal) (uint64, error)
	PayLoan(ctx context.Context, accountID, loanID uint64, amount decimal.Decimal) (decimal.Decimal, error)
	LoanStatus(ctx context.Context, accountID uint64) ([]domain.LoanSummary, error)
	Audit(ctx context.Context) (decimal.Decimal, int, error)
}

// Interpreter implements ports.CommandHandler on top of a Ledger.
type Interpreter struct {
	ledger Ledger
	logger ports.Logger
}

// NewInterpreter creates an interpreter. A nil logger disables logging.
func NewInterpreter(l Ledger, logger ports.Logger) *Interpreter {
	if logger == nil {
		logger = logAdapter.NewNoopLogger()
	}
	return &Interpreter{ledger: l, logger: logger}
}

var _ ports.CommandHandler = (*Interpreter)(nil)

// Apply executes one command line and returns the response line.
// Apply never fails: every outcome, including a malformed line, is a response.
func (i *Interpreter) Apply(ctx context.Context, line string) string {
	cmd, err := Parse(line)
	if err != nil {
		i.logger.Debug("rejected command", ports.Err(err))
		return failure(Code(err))
	}
	resp := i.Execute(ctx, cmd)
	i.logger.Debug("command applied", ports.String("line", line), ports.String("response", resp))
	return resp
}

// Execute runs a parsed command.
func (i *Interpreter) Execute(ctx context.Context, cmd Command) string {
	switch c := cmd.(type) {
	case CreateAccount:
		return i.done(i.ledger.CreateAccount(ctx, c.AccountID, c.Balance))

	case QueryAccount:
		acc, err := i.ledger.Account(ctx, c.AccountID)
		if err != nil {
			return i.reject(err)
		}
		return i.encode(acc)

	case Debit:
		return i.done(i.ledger.Debit(ctx, c.AccountID, c.Amount))

	case Credit:
		return i.done(i.ledger.Credit(ctx, c.AccountID, c.Amount))

	case RecordTx:
		return i.done(i.ledger.RecordTransfer(ctx, c.From, c.To, c.Amount))

	case CreateLoan:
		id, err := i.ledger.CreateLoan(ctx, c.AccountID, c.Amount, c.Pending)
		if err != nil {
			return i.reject(err)
		}
		return success("LoanID:" + strconv.FormatUint(id, 10))

	case PayLoan:
		remaining, err := i.ledger.PayLoan(ctx, c.AccountID, c.LoanID, c.Amount)
		if err != nil {
			return i.reject(err)
		}
		return success("MontoRestante:" + remaining.String())

	case LoanStatus:
		loans, err := i.ledger.LoanStatus(ctx, c.AccountID)
		if err != nil {
			return i.reject(err)
		}
		return i.encode(loans)

	case Audit:
		total, count, err := i.ledger.Audit(ctx)
		if err != nil {
			return i.reject(err)
		}
		return success(total.String() + Separator + strconv.Itoa(count))

	default:
		return failure(CodeUnknownOp)
	}
}

func (i *Interpreter) done(err error) string {
	if err != nil {
		return i.reject(err)
	}
	return "OK"
}

func (i *Interpreter) reject(err error) string {
	code := Code(err)
	if code == CodePersistenceError {
		i.logger.Error("command not persisted", ports.Err(err))
	}
	return failure(code)
}

func (i *Interpreter) encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		i.logger.Error("encode response", ports.Err(err))
		return failure(CodePersistenceError)
	}
	return success(string(data))
}

// Code maps a ledger error to its wire reason code.
func Code(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrAccountExists):
		return CodeExists
	case errors.Is(err, domain.ErrInsufficientFunds):
		return CodeInsufficient
	case errors.Is(err, domain.ErrLoanNotFound):
		return CodeLoanNotFound
	case errors.Is(err, domain.ErrPaymentExceedsPending):
		return CodeExceedsPending
	case errors.Is(err, domain.ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, ErrUnknownOp):
		return CodeUnknownOp
	default:
		// Persistence failures, a closed ledger and canceled contexts all
		// mean the command did not take effect.
		return CodePersistenceError
	}
}

func success(payload string) string {
	return fmt.Sprintf("OK%s%s", Separator, payload)
}

func failure(code string) string {
	return "ERROR" + Separator + code
}
