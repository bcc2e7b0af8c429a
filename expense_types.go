package ledger

type Category string

const (
	CategoryHousing              Category = "Housing"
	CategoryUtilities            Category = "Utilities"
	CategoryGroceries            Category = "Groceries"
	CategoryDiningOut            Category = "Dining Out"
	CategoryInsurance            Category = "Insurance"
	CategoryGas                  Category = "Gas"
	CategoryVehicleMaintenance   Category = "Vehicle Maintenance"
	CategoryEntertainment        Category = "Entertainment"
	CategorySubscriptions        Category = "Subscriptions"
	CategoryRecreationActivities Category = "Recreation Activities"
	CategoryPetCare              Category = "Pet Care"
	CategoryTaxMedical           Category = "Tax - Medical"
	CategoryTaxDonation          Category = "Tax - Donation"
	CategoryOther                Category = "Other"
)

// Categories lists every category the ledger accepts.
var Categories = []Category{
	CategoryHousing,
	CategoryUtilities,
	CategoryGroceries,
	CategoryDiningOut,
	CategoryInsurance,
	CategoryGas,
	CategoryVehicleMaintenance,
	CategoryEntertainment,
	CategorySubscriptions,
	CategoryRecreationActivities,
	CategoryPetCare,
	CategoryTaxMedical,
	CategoryTaxDonation,
	CategoryOther,
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentDebit  PaymentMethod = "Debit"
	PaymentCheque PaymentMethod = "Cheque"
	PaymentCIBCMC PaymentMethod = "CIBC MC"
	PaymentPCFMC  PaymentMethod = "PCF MC"
	PaymentWSVisa PaymentMethod = "WS VISA"
	PaymentVisa   PaymentMethod = "VISA"
)

// PaymentMethods lists every payment method the ledger accepts.
var PaymentMethods = []PaymentMethod{
	PaymentCash,
	PaymentDebit,
	PaymentCheque,
	PaymentCIBCMC,
	PaymentPCFMC,
	PaymentWSVisa,
	PaymentVisa,
}

type Expense struct {
	ID            string        `json:"id"`
	Date          string        `json:"date"`
	Place         string        `json:"place"`
	Description   string        `json:"description"`
	Category      Category      `json:"type"`
	PaymentMethod PaymentMethod `json:"method"`
	AmountCents   int64         `json:"amountCents"`
}

type CreateExpenseReq struct {
	Date          string        `json:"date"`
	Place         string        `json:"place"`
	Description   string        `json:"description"`
	Category      Category      `json:"type"`
	PaymentMethod PaymentMethod `json:"method"`
	AmountCents   int64         `json:"amountCents"`
}
