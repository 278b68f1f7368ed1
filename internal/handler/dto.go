package handler

// dto.go holds the JSON shapes of the API.  Field names follow the
// back-office client: camelCase, accountOperationDTOS on history pages.

import (
    "time"

    "github.com/shopspring/decimal"

    "github.com/iliyamo/ebank-backoffice/internal/model"
)

type bankAccountDTO struct {
    ID           string           `json:"id"`
    Type         string           `json:"type"`
    Balance      decimal.Decimal  `json:"balance"`
    Status       string           `json:"status"`
    CreatedAt    time.Time        `json:"createdAt"`
    CustomerID   int64            `json:"customerId,omitempty"`
    OverDraft    *decimal.Decimal `json:"overDraft,omitempty"`
    InterestRate *decimal.Decimal `json:"interestRate,omitempty"`
}

func toAccountDTO(acc model.BankAccount) bankAccountDTO {
    dto := bankAccountDTO{
        ID:         acc.ID,
        Type:       string(acc.Kind),
        Balance:    acc.Balance,
        Status:     string(acc.Status),
        CreatedAt:  acc.CreatedAt,
        CustomerID: acc.CustomerID,
    }
    if info, ok := acc.Kind.Info(); ok {
        if info.UsesOverdraft {
            od := acc.Overdraft
            dto.OverDraft = &od
        }
        if info.UsesInterest {
            rate := acc.InterestRate
            dto.InterestRate = &rate
        }
    }
    return dto
}

func toAccountDTOs(accs []model.BankAccount) []bankAccountDTO {
    out := make([]bankAccountDTO, 0, len(accs))
    for _, a := range accs {
        out = append(out, toAccountDTO(a))
    }
    return out
}

type operationDTO struct {
    ID            int64           `json:"id"`
    OperationDate time.Time       `json:"operationDate"`
    Amount        decimal.Decimal `json:"amount"`
    Type          string          `json:"type"`
    Description   string          `json:"description"`
}

func toOperationDTOs(ops []model.Operation) []operationDTO {
    out := make([]operationDTO, 0, len(ops))
    for _, o := range ops {
        out = append(out, operationDTO{
            ID:            o.ID,
            OperationDate: o.Date,
            Amount:        o.Amount,
            Type:          string(o.Type),
            Description:   o.Description,
        })
    }
    return out
}

type accountHistoryDTO struct {
    AccountID   string          `json:"accountId"`
    Balance     decimal.Decimal `json:"balance"`
    CurrentPage int             `json:"currentPage"`
    PageSize    int             `json:"pageSize"`
    TotalPages  int             `json:"totalPages"`
    Total       int             `json:"totalOperations"`
    Operations  []operationDTO  `json:"accountOperationDTOS"`
}

func toHistoryDTO(h model.AccountHistory) accountHistoryDTO {
    return accountHistoryDTO{
        AccountID:   h.AccountID,
        Balance:     h.Balance,
        CurrentPage: h.Page,
        PageSize:    h.Size,
        TotalPages:  h.TotalPages,
        Total:       h.TotalOperations,
        Operations:  toOperationDTOs(h.Operations),
    }
}

type customerDTO struct {
    ID        int64     `json:"id"`
    Name      string    `json:"name"`
    Email     string    `json:"email"`
    CreatedAt time.Time `json:"createdAt"`
}

// customerReq is the body of create and update.  Password is only read on
// create and never returned.
type customerReq struct {
    Name     string `json:"name"`
    Email    string `json:"email"`
    Password string `json:"password"`
}

func toCustomerDTO(c model.Customer) customerDTO {
    return customerDTO{ID: c.ID, Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt}
}

func toCustomerDTOs(cs []model.Customer) []customerDTO {
    out := make([]customerDTO, 0, len(cs))
    for _, c := range cs {
        out = append(out, toCustomerDTO(c))
    }
    return out
}

// movementReq is the body of debit and credit.
type movementReq struct {
    AccountID   string          `json:"accountId"`
    Amount      decimal.Decimal `json:"amount"`
    Description string          `json:"description"`
}

type transferReq struct {
    AccountSource      string          `json:"accountSource"`
    AccountDestination string          `json:"accountDestination"`
    Amount             decimal.Decimal `json:"amount"`
}

type openAccountReq struct {
    CustomerID     int64           `json:"customerId"`
    Type           string          `json:"type"`
    InitialBalance decimal.Decimal `json:"initialBalance"`
    OverDraft      decimal.Decimal `json:"overDraft"`
    InterestRate   decimal.Decimal `json:"interestRate"`
}
