package domain

// Pattern lists are evaluated in order; the first match wins.
// Patterns are compiled case-insensitively.

// DefaultExcludePatterns returns credits that are never business revenue.
func DefaultExcludePatterns() []PatternRule {
	return []PatternRule{
		// Interbank transfers
		{Pattern: `TRANSFER\s+(FROM|FRM)\s+(CHK|CHECK|SAV|SAVINGS|\*+\d{4})`, Reason: "Internal account transfer"},
		{Pattern: `TRANSFER\s+(TO|INTO)\s+(CHK|CHECK|SAV|SAVINGS|\*+\d{4})`, Reason: "Internal account transfer"},
		{Pattern: `INTERNAL\s*TRANSFER`, Reason: "Internal transfer"},
		{Pattern: `ACCOUNT\s*TRANSFER`, Reason: "Account transfer"},
		{Pattern: `MOVE\s*MONEY`, Reason: "Internal money movement"},
		{Pattern: `FUNDS\s*TRANSFER`, Reason: "Funds transfer"},
		{Pattern: `ONLINE\s*TRANSFER\s*(FROM|TO)`, Reason: "Online banking transfer"},
		{Pattern: `XFER\s*(FROM|TO)`, Reason: "Transfer between accounts"},
		{Pattern: `WIRE\s*TRANSFER`, Unless: `CUSTOMER|CLIENT|INVOICE`, Reason: "Wire transfer"},
		{Pattern: `BETWEEN\s*ACCOUNTS`, Reason: "Between accounts transfer"},

		// MCA funders
		{Pattern: `ONDECK|ON\s*DECK`, Reason: "MCA funder - OnDeck"},
		{Pattern: `KABBAGE`, Reason: "MCA funder - Kabbage"},
		{Pattern: `FUNDBOX`, Reason: "MCA funder - Fundbox"},
		{Pattern: `BLUEVINE|BLUE\s*VINE`, Reason: "MCA funder - BlueVine"},
		{Pattern: `CREDIBLY`, Reason: "MCA funder - Credibly"},
		{Pattern: `KAPITUS`, Reason: "MCA funder - Kapitus"},
		{Pattern: `RAPID\s*FINANCE`, Reason: "MCA funder - Rapid Finance"},
		{Pattern: `CAN\s*CAPITAL`, Reason: "MCA funder - CAN Capital"},
		{Pattern: `NATIONAL\s*FUNDING`, Reason: "MCA funder - National Funding"},
		{Pattern: `BIZFI|BIZ2CREDIT`, Reason: "MCA funder - BizFi/Biz2Credit"},
		{Pattern: `LENDIO`, Reason: "MCA funder - Lendio"},
		{Pattern: `FUNDERA`, Reason: "MCA funder - Fundera"},
		{Pattern: `SQUARE\s*CAPITAL|SQ\s*CAPITAL`, Reason: "MCA funder - Square Capital"},
		{Pattern: `PAYPAL\s*WORKING\s*CAPITAL`, Reason: "MCA funder - PayPal Working Capital"},
		{Pattern: `AMAZON\s*LENDING`, Reason: "MCA funder - Amazon Lending"},
		{Pattern: `SHOPIFY\s*CAPITAL`, Reason: "MCA funder - Shopify Capital"},
		{Pattern: `STRIPE\s*CAPITAL`, Reason: "MCA funder - Stripe Capital"},
		{Pattern: `CLEARCO|CLEARBANC`, Reason: "MCA funder - Clearco"},
		{Pattern: `LIBERTAS`, Reason: "MCA funder - Libertas"},
		{Pattern: `FORWARD\s*FINANCING`, Reason: "MCA funder - Forward Financing"},
		{Pattern: `FORA\s*FINANCIAL`, Reason: "MCA funder - Fora Financial"},
		{Pattern: `RELIANT\s*FUNDING`, Reason: "MCA funder - Reliant Funding"},
		{Pattern: `HEADWAY\s*CAPITAL`, Reason: "MCA funder - Headway Capital"},
		{Pattern: `BEHALF`, Reason: "MCA funder - Behalf"},
		{Pattern: `GREENBOX\s*CAPITAL`, Reason: "MCA funder - Greenbox Capital"},
		{Pattern: `KALAMATA\s*CAPITAL`, Reason: "MCA funder - Kalamata Capital"},
		{Pattern: `MULLIGAN\s*FUNDING`, Reason: "MCA funder - Mulligan Funding"},
		{Pattern: `UNITED\s*CAPITAL\s*SOURCE`, Reason: "MCA funder - United Capital Source"},

		// Generic lending
		{Pattern: `MERCHANT\s*CASH\s*ADVANCE`, Reason: "MCA funding"},
		{Pattern: `MCA\s*(FUNDING|ADVANCE|DEPOSIT)`, Reason: "MCA funding"},
		{Pattern: `BUSINESS\s*(LOAN|ADVANCE|FUNDING)`, Reason: "Business loan/advance"},
		{Pattern: `LOAN\s*(PROCEED|DEPOSIT|DISBURS)`, Reason: "Loan proceeds"},
		{Pattern: `WORKING\s*CAPITAL\s*(ADVANCE|FUNDING)`, Reason: "Working capital advance"},
		{Pattern: `REVENUE\s*BASED\s*FINANCING`, Reason: "Revenue based financing"},
		{Pattern: `LINE\s*OF\s*CREDIT|LOC\s*(ADVANCE|DRAW)`, Reason: "Line of credit advance"},
		{Pattern: `CREDIT\s*LINE\s*(ADVANCE|DRAW)`, Reason: "Credit line advance"},
		{Pattern: `TERM\s*LOAN`, Reason: "Term loan"},
		{Pattern: `EQUIPMENT\s*(LOAN|FINANCING|LEASE)`, Reason: "Equipment financing"},
		{Pattern: `SBA\s*(LOAN|EIDL|PPP)`, Reason: "SBA loan"},
		{Pattern: `EIDL\s*(ADVANCE|LOAN)`, Reason: "EIDL loan"},
		{Pattern: `PPP\s*(LOAN|FORGIVE)`, Reason: "PPP loan"},

		// Owner money
		{Pattern: `OWNER\s*(CONTRIBUTION|DEPOSIT|LOAN|INVESTMENT)`, Reason: "Owner capital injection"},
		{Pattern: `SHAREHOLDER\s*(CONTRIBUTION|LOAN|DEPOSIT)`, Reason: "Shareholder contribution"},
		{Pattern: `CAPITAL\s*CONTRIBUTION`, Reason: "Capital contribution"},
		{Pattern: `MEMBER\s*(CONTRIBUTION|DEPOSIT|LOAN)`, Reason: "Member contribution"},
		{Pattern: `PARTNER\s*(CONTRIBUTION|DEPOSIT)`, Reason: "Partner contribution"},
		{Pattern: `PERSONAL\s*(DEPOSIT|TRANSFER|FUNDS)`, Reason: "Personal funds transfer"},
		{Pattern: `INVESTMENT\s*FROM\s*OWNER`, Reason: "Owner investment"},
		{Pattern: `EQUITY\s*(CONTRIBUTION|INJECTION)`, Reason: "Equity injection"},

		// Tax refunds
		{Pattern: `IRS\s*TREAS`, Reason: "IRS/Treasury payment"},
		{Pattern: `TREASURY\s*(DEPT|310)`, Reason: "Treasury department"},
		{Pattern: `TAX\s*REFUND`, Reason: "Tax refund"},
		{Pattern: `STATE\s*TAX\s*REF`, Reason: "State tax refund"},
		{Pattern: `FRANCHISE\s*TAX\s*REF`, Reason: "Franchise tax refund"},
		{Pattern: `SALES\s*TAX\s*REF`, Reason: "Sales tax refund"},

		// Reversals and adjustments
		{Pattern: `CHARGEBACK\s*REVERSAL`, Reason: "Chargeback reversal"},
		{Pattern: `DISPUTE\s*CREDIT`, Reason: "Dispute credit"},
		{Pattern: `PROVISIONAL\s*CREDIT`, Reason: "Provisional credit"},
		{Pattern: `FEE\s*REVERSAL`, Reason: "Fee reversal"},
		{Pattern: `FEE\s*REFUND`, Reason: "Fee refund"},
		{Pattern: `NSF\s*FEE\s*REV`, Reason: "NSF fee reversal"},
		{Pattern: `OD\s*FEE\s*REV`, Reason: "Overdraft fee reversal"},
		{Pattern: `OVERDRAFT\s*FEE\s*REV`, Reason: "Overdraft fee reversal"},
		{Pattern: `ADJUSTMENT\s*CREDIT`, Reason: "Account adjustment"},
		{Pattern: `CORRECTION\s*CREDIT`, Reason: "Account correction"},
		{Pattern: `ERROR\s*CORRECTION`, Reason: "Error correction"},
		{Pattern: `REFUND\s*(CREDIT|FROM)`, Reason: "Refund credit"},
		{Pattern: `RETURN\s*ITEM\s*CREDIT`, Reason: "Return item credit"},

		// Interest and bank credits
		{Pattern: `INTEREST\s*(PAYMENT|CREDIT|EARNED|PAID)`, Reason: "Interest earned"},
		{Pattern: `DIVIDEND\s*(PAYMENT|CREDIT)`, Reason: "Dividend"},
		{Pattern: `CASH\s*BACK`, Reason: "Cashback reward"},
		{Pattern: `CASHBACK\s*REWARD`, Reason: "Cashback reward"},
		{Pattern: `REWARD\s*(CREDIT|REDEMPTION)`, Reason: "Reward credit"},
		{Pattern: `REBATE\s*(CREDIT|PAYMENT)`, Reason: "Rebate"},
		{Pattern: `BONUS\s*CREDIT`, Unless: `PAYROLL`, Reason: "Bonus credit"},
		{Pattern: `PROMOTIONAL\s*CREDIT`, Reason: "Promotional credit"},
		{Pattern: `SIGN\s*UP\s*BONUS`, Reason: "Sign up bonus"},
		{Pattern: `REFERRAL\s*BONUS`, Reason: "Referral bonus"},

		// Insurance
		{Pattern: `INSURANCE\s*(CLAIM|PROCEED|PAYMENT|SETTLEMENT)`, Reason: "Insurance proceeds"},
		{Pattern: `CLAIM\s*PAYMENT`, Reason: "Insurance claim payment"},
		{Pattern: `SETTLEMENT\s*PAYMENT`, Unless: `CARD|MERCHANT`, Reason: "Settlement payment"},

		// Personal P2P
		{Pattern: `VENMO\s*(FROM|TRANSFER).*PERSONAL`, Reason: "Personal Venmo transfer"},
		{Pattern: `CASHAPP\s*(FROM|TRANSFER).*PERSONAL`, Reason: "Personal Cash App transfer"},
	}
}

// DefaultRevenuePatterns returns credits that are business revenue.
func DefaultRevenuePatterns() []PatternRule {
	return []PatternRule{
		// Card processor settlements
		{Pattern: `SQUARE\s*(INC|DEPOSIT|TRANSFER|PAYOUT)`, Reason: "Square card settlement"},
		{Pattern: `STRIPE\s*(TRANSFER|PAYOUT|DEPOSIT)`, Reason: "Stripe settlement"},
		{Pattern: `SHOPIFY\s*(PAYOUT|DEPOSIT|TRANSFER)`, Reason: "Shopify payout"},
		{Pattern: `PAYPAL\s*(TRANSFER|DEPOSIT|INST\s*XFER)`, Unless: `WORKING\s*CAPITAL`, Reason: "PayPal settlement"},
		{Pattern: `CLOVER\s*(DEPOSIT|PAYOUT|TRANSFER)`, Reason: "Clover settlement"},
		{Pattern: `TOAST\s*(DEPOSIT|PAYOUT)`, Reason: "Toast settlement"},
		{Pattern: `HEARTLAND\s*(DEPOSIT|MERCH)`, Reason: "Heartland settlement"},
		{Pattern: `WORLDPAY|VANTIV|FIRST\s*DATA`, Reason: "Card processor settlement"},
		{Pattern: `ELAVON|MONERIS|AUTHORIZE\.?NET`, Reason: "Card processor settlement"},
		{Pattern: `BRAINTREE\s*(DEPOSIT|PAYOUT)`, Reason: "Braintree settlement"},
		{Pattern: `ADYEN\s*(DEPOSIT|PAYOUT)`, Reason: "Adyen settlement"},
		{Pattern: `MERCHANT\s*SERV.*DEPOSIT`, Reason: "Merchant services deposit"},
		{Pattern: `CREDIT\s*CARD\s*DEPOSIT`, Reason: "Credit card deposit"},
		{Pattern: `POS\s*DEPOSIT`, Reason: "POS deposit"},

		// Marketplaces and delivery
		{Pattern: `AMAZON\s*(SETTLEMENT|PAYOUT|TRANSFER)`, Unless: `LENDING`, Reason: "Amazon marketplace payout"},
		{Pattern: `EBAY\s*(MANAGED\s*PAYMENTS?|PAYOUT)`, Reason: "eBay marketplace payout"},
		{Pattern: `ETSY\s*(DEPOSIT|PAYOUT)`, Reason: "Etsy marketplace payout"},
		{Pattern: `WALMART\s*MARKETPLACE`, Reason: "Walmart marketplace payout"},
		{Pattern: `DOORDASH\s*(DEPOSIT|PAYOUT|TRANSFER)`, Reason: "DoorDash payout"},
		{Pattern: `UBER\s*EATS?\s*(DEPOSIT|PAYOUT)`, Reason: "Uber Eats payout"},
		{Pattern: `GRUBHUB\s*(DEPOSIT|PAYOUT)`, Reason: "Grubhub payout"},
		{Pattern: `POSTMATES\s*(DEPOSIT|PAYOUT)`, Reason: "Postmates payout"},

		// Customer payments
		{Pattern: `ZELLE\s*(FROM|CREDIT\s*FROM|REC'?D?\s*FROM)`, Reason: "Zelle payment received"},
		{Pattern: `ZELLE\s*PAYMENT\s*FROM`, Reason: "Zelle payment received"},
		{Pattern: `ACH\s*CREDIT`, Unless: `LOAN|ADVANCE|CAPITAL|FUNDING`, Reason: "ACH customer payment"},
		{Pattern: `DEPOSIT\s*(CASH|CHECK|MOBILE|ATM)`, Reason: "Customer deposit"},
		{Pattern: `REMOTE\s*DEPOSIT`, Reason: "Mobile check deposit"},
		{Pattern: `MOBILE\s*CHECK\s*DEP`, Reason: "Mobile check deposit"},
		{Pattern: `INVOICE\s*PAYMENT`, Reason: "Invoice payment"},
		{Pattern: `CLIENT\s*PAYMENT`, Reason: "Client payment"},
		{Pattern: `CUSTOMER\s*PAYMENT`, Reason: "Customer payment"},
	}
}

// DefaultIndustryPatterns returns revenue patterns specific to an industry key.
func DefaultIndustryPatterns() map[string][]PatternRule {
	return map[string][]PatternRule{
		"restaurant": {
			{Pattern: `DOORDASH|UBER\s*EATS|GRUBHUB|POSTMATES`, Reason: "Food delivery payout"},
			{Pattern: `YELP\s*RESERV|OPENTABLE`, Reason: "Reservation platform"},
			{Pattern: `CAVIAR\s*(DEPOSIT|PAYOUT)`, Reason: "Caviar payout"},
			{Pattern: `SEAMLESS\s*(DEPOSIT|PAYOUT)`, Reason: "Seamless payout"},
		},
		"retail": {
			{Pattern: `POS\s*DEPOSIT|REGISTER\s*DEPOSIT`, Reason: "POS deposit"},
			{Pattern: `INVENTORY\s*SALE`, Reason: "Inventory sale"},
		},
		"professional_services": {
			{Pattern: `INVOICE\s*PAYMENT|CLIENT\s*PAYMENT`, Reason: "Client payment"},
			{Pattern: `RETAINER\s*PAYMENT`, Reason: "Retainer payment"},
			{Pattern: `CONSULTING\s*FEE`, Reason: "Consulting fee"},
		},
		"healthcare": {
			{Pattern: `INSURANCE\s*REIMBURSE`, Reason: "Insurance reimbursement"},
			{Pattern: `MEDICARE|MEDICAID`, Reason: "Government healthcare payment"},
			{Pattern: `PATIENT\s*PAYMENT`, Reason: "Patient payment"},
		},
		"construction": {
			{Pattern: `PROGRESS\s*PAYMENT`, Reason: "Progress payment"},
			{Pattern: `CONTRACT\s*PAYMENT`, Reason: "Contract payment"},
			{Pattern: `DRAW\s*REQUEST`, Unless: `CREDIT\s*LINE`, Reason: "Construction draw"},
		},
		"ecommerce": {
			{Pattern: `SHOPIFY\s*(PAYOUT|DEPOSIT)`, Reason: "Shopify payout"},
			{Pattern: `WOOCOMMERCE`, Reason: "WooCommerce payout"},
			{Pattern: `BIGCOMMERCE`, Reason: "BigCommerce payout"},
		},
	}
}

// DefaultMCAPaymentPatterns returns debit patterns of funder remittances.
// Reason holds the funder name.
func DefaultMCAPaymentPatterns() []PatternRule {
	return []PatternRule{
		{Pattern: `ONDECK|ON\s*DECK`, Reason: "OnDeck"},
		{Pattern: `KABBAGE`, Reason: "Kabbage"},
		{Pattern: `FUNDBOX`, Reason: "Fundbox"},
		{Pattern: `BLUEVINE|BLUE\s*VINE`, Reason: "BlueVine"},
		{Pattern: `CREDIBLY`, Reason: "Credibly"},
		{Pattern: `KAPITUS`, Reason: "Kapitus"},
		{Pattern: `RAPID\s*FINANCE`, Reason: "Rapid Finance"},
		{Pattern: `CAN\s*CAPITAL`, Reason: "CAN Capital"},
		{Pattern: `NATIONAL\s*FUNDING`, Reason: "National Funding"},
		{Pattern: `SQUARE\s*CAPITAL`, Reason: "Square Capital"},
		{Pattern: `PAYPAL\s*WORK`, Reason: "PayPal Working Capital"},
		{Pattern: `SHOPIFY\s*CAP`, Reason: "Shopify Capital"},
		{Pattern: `STRIPE\s*CAP`, Reason: "Stripe Capital"},
		{Pattern: `CLEARCO|CLEARBANC`, Reason: "Clearco"},
		{Pattern: `LIBERTAS`, Reason: "Libertas"},
		{Pattern: `MCA\s*(PAYMENT|PYMT|PMT)`, Reason: "Unknown MCA"},
		{Pattern: `MERCHANT\s*CASH`, Reason: "Unknown MCA"},
		{Pattern: `DAILY\s*(PAYMENT|PYMT|PMT)`, Reason: "Unknown MCA"},
	}
}

// DefaultKnownFunders returns lowercase funder names used by fraud and stacking checks.
func DefaultKnownFunders() []string {
	return []string{
		"ondeck", "kabbage", "fundbox", "bluevine", "credibly", "kapitus",
		"rapid finance", "can capital", "national funding", "bizfi", "biz2credit",
		"lendio", "fundera", "square capital", "paypal working capital",
		"amazon lending", "shopify capital", "stripe capital", "clearco",
		"clearbanc", "libertas", "forward financing", "fora financial",
		"reliant funding", "headway capital", "behalf", "greenbox capital",
		"mulligan funding", "united capital source",
	}
}
