package coa

// NormalBalance indicates whether increases are recorded as debit or credit.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

// AccountType is a fixed classification category in the chart of accounts.
type AccountType struct {
	Name          string
	NormalBalance NormalBalance
	Description   string
}

// NumberRange is the inclusive account number range owned by a type.
type NumberRange struct {
	Min int
	Max int
}

// accountTypes is the immutable registry of recognized categories. Adding a
// category means extending this table and numberRanges together.
var accountTypes = []AccountType{
	{Name: "Asset", NormalBalance: NormalBalanceDebit, Description: "Resources owned by the business"},
	{Name: "Liability", NormalBalance: NormalBalanceCredit, Description: "Obligations owed to others"},
	{Name: "Equity", NormalBalance: NormalBalanceCredit, Description: "Owner claims on the business"},
	{Name: "Revenue", NormalBalance: NormalBalanceCredit, Description: "Income from sales and services"},
	{Name: "COGS", NormalBalance: NormalBalanceDebit, Description: "Cost of goods sold"},
	{Name: "Operating Expense", NormalBalance: NormalBalanceDebit, Description: "Costs of running operations"},
	{Name: "G&A", NormalBalance: NormalBalanceDebit, Description: "General and administrative expenses"},
	{Name: "Other", NormalBalance: NormalBalanceDebit, Description: "Other income and expense"},
}

var numberRanges = map[string]NumberRange{
	"Asset":             {Min: 100000, Max: 199999},
	"Liability":         {Min: 200000, Max: 289999},
	"Equity":            {Min: 290000, Max: 299999},
	"Revenue":           {Min: 300000, Max: 399999},
	"COGS":              {Min: 400000, Max: 499999},
	"Operating Expense": {Min: 500000, Max: 599999},
	"G&A":               {Min: 600000, Max: 699999},
	"Other":             {Min: 700000, Max: 799999},
}

// AccountTypes returns the registry in listing order.
func AccountTypes() []AccountType {
	return append([]AccountType(nil), accountTypes...)
}

// TypeByName looks up a registered account type.
func TypeByName(name string) (AccountType, bool) {
	for _, t := range accountTypes {
		if t.Name == name {
			return t, true
		}
	}
	return AccountType{}, false
}

// RangeForType returns the number range owned by a type name.
func RangeForType(name string) (NumberRange, bool) {
	r, ok := numberRanges[name]
	return r, ok
}
