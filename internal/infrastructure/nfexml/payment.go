package nfexml

// Payment method codes from the tPag field of the payment detail group.
var paymentLabels = map[string]string{
	"01": "Cash",
	"02": "Cheque",
	"03": "Credit Card",
	"04": "Debit Card",
	"05": "Store Credit",
	"10": "Food Voucher",
	"11": "Meal Voucher",
	"12": "Gift Card",
	"13": "Fuel Voucher",
	"15": "Boleto",
	"16": "Bank Deposit",
	"17": "PIX",
	"18": "Bank Transfer",
	"19": "Loyalty Program",
	"90": "No Payment",
	"99": "Other",
}

func paymentLabel(code string) string {
	if label, ok := paymentLabels[code]; ok {
		return label
	}
	return "Other"
}
