package loans

type openLoanPayload struct {
	BookID       int    `json:"book_id"`
	BorrowerName string `json:"borrower_name" mod:"trim" validate:"required,max=200"`
	PeriodDays   int    `json:"period_days"`
}
