package domain

import "time"

// UnderwritingConfig holds every threshold, weight, table and pattern list used by the pipeline.
type UnderwritingConfig struct {
	Capacity     CapacityConfig     `json:"capacity"`
	Revenue      RevenueConfig      `json:"revenue"`
	NSF          NSFConfig          `json:"nsf"`
	Fraud        FraudConfig        `json:"fraud"`
	Stats        StatsConfig        `json:"stats"`
	BankAnalysis BankAnalysisConfig `json:"bankAnalysis"`
	Scoring      ScoringConfig      `json:"scoring"`
	Pricing      PricingConfig      `json:"pricing"`
	Stacking     StackingConfig     `json:"stacking"`
	Signals      SignalsConfig      `json:"signals"`
}

// CapacityConfig is the system-wide withhold ceiling shared by every offer entry point.
type CapacityConfig struct {
	BusinessDaysPerMonth float64 `json:"businessDaysPerMonth"`

	// MaxWithholdPercent is the hard cap as a fraction (0.20 = 20%).
	MaxWithholdPercent float64 `json:"maxWithholdPercent"`
}

// PatternRule is a case-insensitive RE2 pattern with an optional exclusion.
// A description matches when Pattern matches and Unless does not match the text after it.
type PatternRule struct {
	Pattern string `json:"pattern"`
	Unless  string `json:"unless,omitempty"`
	Reason  string `json:"reason"`
}

// RevenueConfig configures the revenue classifier.
type RevenueConfig struct {
	ExcludePatterns  []PatternRule            `json:"excludePatterns"`
	RevenuePatterns  []PatternRule            `json:"revenuePatterns"`
	IndustryPatterns map[string][]PatternRule `json:"industryPatterns"`

	// MCAPaymentPatterns detect funder debits; Reason holds the funder name.
	MCAPaymentPatterns []PatternRule `json:"mcaPaymentPatterns"`
	KnownFunders       []string      `json:"knownFunders"`

	PatternConfidence  float64 `json:"patternConfidence"`
	IndustryConfidence float64 `json:"industryConfidence"`

	LargeDepositThreshold  float64   `json:"largeDepositThreshold"`
	LargeDepositConfidence float64   `json:"largeDepositConfidence"`
	SuspiciousLoanAmounts  []float64 `json:"suspiciousLoanAmounts"`
	HeuristicConfidence    float64   `json:"heuristicConfidence"`
	RoundNumberStep        float64   `json:"roundNumberStep"`
	DefaultConfidence      float64   `json:"defaultConfidence"`

	// FunderPaymentDays converts an average funder debit to a monthly estimate.
	FunderPaymentDays float64 `json:"funderPaymentDays"`
}

// NSFConfig configures NSF detection and fee/return pairing.
type NSFConfig struct {
	FeeKeywords    []string `json:"feeKeywords"`
	ReturnKeywords []string `json:"returnKeywords"`

	PairingWindowDays int     `json:"pairingWindowDays"`
	TimeWeightPerDay  float64 `json:"timeWeightPerDay"`
	SimilarityWeight  float64 `json:"similarityWeight"`
	MatchThreshold    float64 `json:"matchThreshold"`
}

// Impact is the score deduction of a fraud check at each severity.
type Impact struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
}

// CountBand grades a fraud check by occurrence count.
type CountBand struct {
	High   int    `json:"high"`
	Medium int    `json:"medium"`
	Impact Impact `json:"impact"`
}

// RatioBand grades a fraud check by share and count.
type RatioBand struct {
	HighRatio   float64 `json:"highRatio"`
	HighCount   int     `json:"highCount"`
	MediumRatio float64 `json:"mediumRatio"`
	MediumCount int     `json:"mediumCount"`
	Impact      Impact  `json:"impact"`
}

// FraudConfig configures the ten fraud checks and the cross reference.
type FraudConfig struct {
	DuplicatePrefixLength int       `json:"duplicatePrefixLength"`
	Duplicates            CountBand `json:"duplicates"`

	RoundNumberMinimum float64   `json:"roundNumberMinimum"`
	RoundNumberStep    float64   `json:"roundNumberStep"`
	RoundNumbers       RatioBand `json:"roundNumbers"`

	VolumeSpikeMultiplier float64   `json:"volumeSpikeMultiplier"`
	MonthEndDay           int       `json:"monthEndDay"`
	MonthEndRatio         float64   `json:"monthEndRatio"`
	Timing                CountBand `json:"timing"`

	VelocityMinCredits   int       `json:"velocityMinCredits"`
	VelocityStdDeviation float64   `json:"velocityStdDeviation"`
	Velocity             CountBand `json:"velocity"`

	StructuringThresholds []float64 `json:"structuringThresholds"`
	StructuringMargin     float64   `json:"structuringMargin"`
	Structuring           CountBand `json:"structuring"`

	PairedAmountTolerance float64   `json:"pairedAmountTolerance"`
	RepeatedAmountCount   int       `json:"repeatedAmountCount"`
	Unusual               CountBand `json:"unusual"`

	PersonalDepositPatterns []string `json:"personalDepositPatterns"`
	PersonalDepositMinimum  int      `json:"personalDepositMinimum"`
	KitingMinAmount         float64  `json:"kitingMinAmount"`
	KitingWindowDays        int      `json:"kitingWindowDays"`
	KitingTolerance         float64  `json:"kitingTolerance"`
	KitingMinimum           int      `json:"kitingMinimum"`
	KitingHigh              int      `json:"kitingHigh"`
	ManipulationImpact      Impact   `json:"manipulationImpact"`

	LoanPatterns   []string  `json:"loanPatterns"`
	RefundPatterns []string  `json:"refundPatterns"`
	FakeRevenue    CountBand `json:"fakeRevenue"`

	GapMinTransactions int       `json:"gapMinTransactions"`
	GapDays            int       `json:"gapDays"`
	Gaps               CountBand `json:"gaps"`

	Weekend RatioBand `json:"weekend"`

	RevenueVarianceHigh   float64 `json:"revenueVarianceHigh"`
	RevenueVarianceMedium float64 `json:"revenueVarianceMedium"`
	CrossReferenceImpact  Impact  `json:"crossReferenceImpact"`

	// Recommendation thresholds on the final fraud score.
	DeclineBelow         float64 `json:"declineBelow"`
	ReviewBelow          float64 `json:"reviewBelow"`
	CautionBelow         float64 `json:"cautionBelow"`
	DeclineHighFlagCount int     `json:"declineHighFlagCount"`
}

// StatsConfig configures volatility, trend, seasonality and decline grading.
type StatsConfig struct {
	HighVolatilityCV   float64 `json:"highVolatilityCV"`
	MediumVolatilityCV float64 `json:"mediumVolatilityCV"`

	// StableTrendPercent is the band around zero, as a percent of the mean, treated as flat.
	StableTrendPercent float64 `json:"stableTrendPercent"`

	SeriesChangeMinimum  float64 `json:"seriesChangeMinimum"`
	SeriesChangeMinCount int     `json:"seriesChangeMinCount"`

	SeasonalMinMonths        int     `json:"seasonalMinMonths"`
	SeasonalSpreadRatio      float64 `json:"seasonalSpreadRatio"`
	SeasonalDeviationPercent float64 `json:"seasonalDeviationPercent"`
	HighlyVariablePeakShare  float64 `json:"highlyVariablePeakShare"`

	DeclineRecentMonths  int     `json:"declineRecentMonths"`
	DeclineHighPercent   float64 `json:"declineHighPercent"`
	DeclineMediumPercent float64 `json:"declineMediumPercent"`
}

// BankAnalysisConfig configures the statement-derived bank analysis score.
type BankAnalysisConfig struct {
	BaseScore int `json:"baseScore"`

	ConsistencyExcellent float64 `json:"consistencyExcellent"`
	ConsistencyGood      float64 `json:"consistencyGood"`
	ConsistencyPoor      float64 `json:"consistencyPoor"`

	StrongGrowthPercent       float64 `json:"strongGrowthPercent"`
	SignificantDeclinePercent float64 `json:"significantDeclinePercent"`

	NSFPenaltyPerEvent int `json:"nsfPenaltyPerEvent"`
	NSFMaxPenalty      int `json:"nsfMaxPenalty"`

	HighBurdenPercent     float64 `json:"highBurdenPercent"`
	ModerateBurdenPercent float64 `json:"moderateBurdenPercent"`
	MultipleFunders       int     `json:"multipleFunders"`

	// Share of months with positive net cash flow.
	CashFlowStrong float64 `json:"cashFlowStrong"`
	CashFlowGood   float64 `json:"cashFlowGood"`
	CashFlowWeak   float64 `json:"cashFlowWeak"`

	HighBalance float64 `json:"highBalance"`
	GoodBalance float64 `json:"goodBalance"`
	LowBalance  float64 `json:"lowBalance"`

	NSFHighFrequency   float64 `json:"nsfHighFrequency"`
	NSFMediumFrequency float64 `json:"nsfMediumFrequency"`
}

// ScoreBand maps a minimum raw value to a normalized score.
type ScoreBand struct {
	Min   int `json:"min"`
	Score int `json:"score"`
}

// BankScoreConfig normalizes a bank analysis signal for weighted scoring.
type BankScoreConfig struct {
	Base                    int     `json:"base"`
	ConsistencyExcellent    float64 `json:"consistencyExcellent"`
	ConsistencyExcellentAdd int     `json:"consistencyExcellentAdd"`
	ConsistencyGood         float64 `json:"consistencyGood"`
	ConsistencyGoodAdd      int     `json:"consistencyGoodAdd"`
	ConsistencyPoorPenalty  int     `json:"consistencyPoorPenalty"`
	BalanceHigh             float64 `json:"balanceHigh"`
	BalanceHighAdd          int     `json:"balanceHighAdd"`
	BalanceMedium           float64 `json:"balanceMedium"`
	BalanceMediumAdd        int     `json:"balanceMediumAdd"`
	BalanceLow              float64 `json:"balanceLow"`
	BalanceLowPenalty       int     `json:"balanceLowPenalty"`
	NSFPenaltyPer           int     `json:"nsfPenaltyPer"`
	NSFMaxPenalty           int     `json:"nsfMaxPenalty"`
	NegativeDayPenaltyPer   int     `json:"negativeDayPenaltyPer"`
	NegativeDayMaxPenalty   int     `json:"negativeDayMaxPenalty"`
}

// IndustryRiskConfig grades an industry string by keyword lists.
type IndustryRiskConfig struct {
	High         []string `json:"high"`
	Medium       []string `json:"medium"`
	Low          []string `json:"low"`
	HighScore    int      `json:"highScore"`
	MediumScore  int      `json:"mediumScore"`
	LowScore     int      `json:"lowScore"`
	DefaultScore int      `json:"defaultScore"`
}

// DecisionThresholds map an overall score to a decision.
type DecisionThresholds struct {
	AutoApprove  int `json:"autoApprove"`
	ManualReview int `json:"manualReview"`
	AutoDecline  int `json:"autoDecline"`
}

// FraudImpactConfig folds the fraud score into the risk score.
type FraudImpactConfig struct {
	Enabled           bool    `json:"enabled"`
	ScoreThreshold    float64 `json:"scoreThreshold"`
	PenaltyMultiplier float64 `json:"penaltyMultiplier"`
}

// AutoFlagConfig holds the thresholds of the automatic assessment flags.
type AutoFlagConfig struct {
	VeryLowCredit         int     `json:"veryLowCredit"`
	HighStackingMCAs      int     `json:"highStackingMcas"`
	NewBusinessMonths     int     `json:"newBusinessMonths"`
	LowMonthlyRevenue     float64 `json:"lowMonthlyRevenue"`
	HighNSFCount          int     `json:"highNsfCount"`
	RevenueDeclinePercent float64 `json:"revenueDeclinePercent"`
}

// QuickCheckConfig configures the pre-screen.
type QuickCheckConfig struct {
	BaseScore          int     `json:"baseScore"`
	VeryLowCredit      int     `json:"veryLowCredit"`
	VeryLowPenalty     int     `json:"veryLowPenalty"`
	GoodCredit         int     `json:"goodCredit"`
	GoodCreditBonus    int     `json:"goodCreditBonus"`
	MaxActiveMCAs      int     `json:"maxActiveMcas"`
	PerMCAPenalty      int     `json:"perMcaPenalty"`
	LowRevenue         float64 `json:"lowRevenue"`
	LowRevenuePenalty  int     `json:"lowRevenuePenalty"`
	NewBusinessMonths  int     `json:"newBusinessMonths"`
	NewBusinessPenalty int     `json:"newBusinessPenalty"`
}

// LegacyTier is a flat score-to-terms tier used by the simple offer estimate.
type LegacyTier struct {
	MinScore           int     `json:"minScore"`
	FactorRate         float64 `json:"factorRate"`
	MaxTermMonths      int     `json:"maxTermMonths"`
	ApprovalPercentage float64 `json:"approvalPercentage"`
	Holdback           float64 `json:"holdback"`
}

// ScoringConfig configures the weighted risk scoring engine.
type ScoringConfig struct {
	Weights            map[string]float64 `json:"weights"`
	CreditBands        []ScoreBand        `json:"creditBands"`
	BankScore          BankScoreConfig    `json:"bankScore"`
	IdentityDefault    int                `json:"identityDefault"`
	StackingDefault    int                `json:"stackingDefault"`
	UCCDefault         int                `json:"uccDefault"`
	IndustryRisk       IndustryRiskConfig `json:"industryRisk"`
	Thresholds         DecisionThresholds `json:"thresholds"`
	FraudImpact        FraudImpactConfig  `json:"fraudImpact"`
	AutoFlags          AutoFlagConfig     `json:"autoFlags"`
	QuickCheck         QuickCheckConfig   `json:"quickCheck"`
	LegacyTiers        []LegacyTier       `json:"legacyTiers"`
	LegacyBusinessDays float64            `json:"legacyBusinessDays"`
	SummaryFlagLimit   int                `json:"summaryFlagLimit"`
}

// FactorTier is a risk-score tier of the offer calculator.
type FactorTier struct {
	Name               string  `json:"name"`
	MinRiskScore       int     `json:"minRiskScore"`
	BaseRate           float64 `json:"baseRate"`
	MaxRate            float64 `json:"maxRate"`
	MaxTermMonths      int     `json:"maxTermMonths"`
	ApprovalPercentage float64 `json:"approvalPercentage"`
}

// CreditTier adjusts pricing by personal credit score.
type CreditTier struct {
	Name             string  `json:"name"`
	MinScore         int     `json:"minScore"`
	FactorAdjustment float64 `json:"factorAdjustment"`
	TermAdjustment   int     `json:"termAdjustment"`
	ApprovalBoost    float64 `json:"approvalBoost"`
}

// IndustryAdjustment adjusts pricing for an industry key.
type IndustryAdjustment struct {
	RiskLevel           string   `json:"riskLevel"`
	FactorAdjustment    float64  `json:"factorAdjustment"`
	TermAdjustment      int      `json:"termAdjustment"`
	MaxWithholdOverride *float64 `json:"maxWithholdOverride,omitempty"`
}

// PositionAdjustment adjusts pricing for the requested position.
type PositionAdjustment struct {
	FactorAdjustment float64 `json:"factorAdjustment"`
	ApprovalModifier float64 `json:"approvalModifier"`
}

// VolatilityAdjustment adjusts pricing for a revenue volatility level.
type VolatilityAdjustment struct {
	FactorAdjustment float64 `json:"factorAdjustment"`
	TermAdjustment   int     `json:"termAdjustment"`
	ApprovalBoost    float64 `json:"approvalBoost"`
}

// HoldbackConfig computes the offer holdback percentage.
type HoldbackConfig struct {
	Base                float64            `json:"base"`
	RiskAdjustments     map[string]float64 `json:"riskAdjustments"`
	PerPositionAddition float64            `json:"perPositionAddition"`
	Min                 float64            `json:"min"`
	Max                 float64            `json:"max"`
}

// OfferBounds are the server-side validation limits of offer terms.
type OfferBounds struct {
	MinFactorRate   float64 `json:"minFactorRate"`
	MaxFactorRate   float64 `json:"maxFactorRate"`
	MinTermMonths   int     `json:"minTermMonths"`
	MaxTermMonths   int     `json:"maxTermMonths"`
	MinDailyPayment float64 `json:"minDailyPayment"`
	MaxDailyPayment float64 `json:"maxDailyPayment"`
	MinHoldback     float64 `json:"minHoldback"`
	MaxHoldback     float64 `json:"maxHoldback"`
}

// OfferDefaults fill missing offer inputs.
type OfferDefaults struct {
	Position        int    `json:"position"`
	TermMonths      int    `json:"termMonths"`
	RiskScore       int    `json:"riskScore"`
	VolatilityLevel string `json:"volatilityLevel"`
}

// PricingConfig configures the capacity offer calculator.
type PricingConfig struct {
	FactorTiers           []FactorTier                    `json:"factorTiers"`
	CreditTiers           []CreditTier                    `json:"creditTiers"`
	IndustryAdjustments   map[string]IndustryAdjustment   `json:"industryAdjustments"`
	PositionAdjustments   map[int]PositionAdjustment      `json:"positionAdjustments"`
	VolatilityAdjustments map[string]VolatilityAdjustment `json:"volatilityAdjustments"`
	Holdback              HoldbackConfig                  `json:"holdback"`
	Bounds                OfferBounds                     `json:"bounds"`
	Defaults              OfferDefaults                   `json:"defaults"`

	MinFunding   float64 `json:"minFunding"`
	MaxFunding   float64 `json:"maxFunding"`
	MaxPositions int     `json:"maxPositions"`

	MinTermMonths    int     `json:"minTermMonths"`
	MinApproval      float64 `json:"minApproval"`
	MaxApproval      float64 `json:"maxApproval"`
	ReducedThreshold float64 `json:"reducedThreshold"`
	ScenarioTerms    []int   `json:"scenarioTerms"`
}

// BurdenBand is the max burden percent allowed at a minimum risk score.
type BurdenBand struct {
	MinRiskScore     int     `json:"minRiskScore"`
	MaxBurdenPercent float64 `json:"maxBurdenPercent"`
}

// TypicalTerms are the factor rate and term the stacking optimizer prices with.
type TypicalTerms struct {
	MinRiskScore int     `json:"minRiskScore"`
	FactorRate   float64 `json:"factorRate"`
	TermMonths   int     `json:"termMonths"`
}

// StackingHoldback computes the stacking optimizer holdback.
type StackingHoldback struct {
	Base                float64 `json:"base"`
	LowScore            int     `json:"lowScore"`
	LowScoreAddition    float64 `json:"lowScoreAddition"`
	VeryLowScore        int     `json:"veryLowScore"`
	VeryLowAddition     float64 `json:"veryLowAddition"`
	PerPositionAddition float64 `json:"perPositionAddition"`
	Max                 float64 `json:"max"`
}

// CapacityMultipliers shrink stacking capacity for weak bank analysis.
type CapacityMultipliers struct {
	PoorBankScore int     `json:"poorBankScore"`
	PoorCashFlow  float64 `json:"poorCashFlow"`
	FairBankScore int     `json:"fairBankScore"`
	FairCashFlow  float64 `json:"fairCashFlow"`
	HighNSF       float64 `json:"highNsf"`
}

// BuyoutConfig configures buyout analysis.
type BuyoutConfig struct {
	MaxFundingShare  float64 `json:"maxFundingShare"`
	NearTermMonths   int     `json:"nearTermMonths"`
	NearTermDiscount float64 `json:"nearTermDiscount"`
	MidTermMonths    int     `json:"midTermMonths"`
	MidTermDiscount  float64 `json:"midTermDiscount"`
}

// StackingConfig configures the position stacking optimizer.
type StackingConfig struct {
	MinFunding   float64 `json:"minFunding"`
	MaxPositions int     `json:"maxPositions"`

	BurdenBands             []BurdenBand   `json:"burdenBands"`
	Typical                 []TypicalTerms `json:"typical"`
	AtCapacityBurdenPercent float64        `json:"atCapacityBurdenPercent"`
	MinTermMonths           int            `json:"minTermMonths"`

	StackingPremium      float64 `json:"stackingPremium"`
	ReductionPerPosition float64 `json:"reductionPerPosition"`

	Holdback    StackingHoldback    `json:"holdback"`
	Multipliers CapacityMultipliers `json:"multipliers"`

	HighExposureRatio   float64 `json:"highExposureRatio"`
	MediumExposureRatio float64 `json:"mediumExposureRatio"`
	HighOverlapRatio    float64 `json:"highOverlapRatio"`

	SustainableNetCashPercent float64      `json:"sustainableNetCashPercent"`
	ReducedAmountShare        float64      `json:"reducedAmountShare"`
	Buyout                    BuyoutConfig `json:"buyout"`
}

// SignalsConfig configures external collaborator signal fetching.
type SignalsConfig struct {
	Timeout          time.Duration `json:"timeout"`
	CacheTTL         time.Duration `json:"cacheTtl"`
	FailureWindow    time.Duration `json:"failureWindow"`
	RequiredForOffer []SignalKind  `json:"requiredForOffer"`

	// Endpoints maps a signal kind to its collaborator URL.
	// Kinds without an endpoint are only taken from the request.
	Endpoints map[SignalKind]string `json:"endpoints"`
}

func floatPtr(v float64) *float64 { return &v }

// DefaultUnderwritingConfig returns the production defaults of the underwriting pipeline.
func DefaultUnderwritingConfig() UnderwritingConfig {
	return UnderwritingConfig{
		Capacity: CapacityConfig{
			BusinessDaysPerMonth: 21.67,
			MaxWithholdPercent:   0.20,
		},
		Revenue: RevenueConfig{
			ExcludePatterns:        DefaultExcludePatterns(),
			RevenuePatterns:        DefaultRevenuePatterns(),
			IndustryPatterns:       DefaultIndustryPatterns(),
			MCAPaymentPatterns:     DefaultMCAPaymentPatterns(),
			KnownFunders:           DefaultKnownFunders(),
			PatternConfidence:      0.95,
			IndustryConfidence:     0.90,
			LargeDepositThreshold:  50000,
			LargeDepositConfidence: 0.5,
			SuspiciousLoanAmounts:  []float64{5000, 10000, 15000, 20000, 25000, 30000, 50000, 75000, 100000},
			HeuristicConfidence:    0.6,
			RoundNumberStep:        5000,
			DefaultConfidence:      0.5,
			FunderPaymentDays:      22,
		},
		NSF: NSFConfig{
			FeeKeywords: []string{
				"nsf fee", "nsf charge", "nsf service charge",
				"non-sufficient funds fee", "insufficient funds fee",
				"overdraft fee", "overdraft charge", "od fee",
				"returned item fee", "returned check fee", "returned payment fee",
				"return item fee", "item returned fee",
			},
			ReturnKeywords: []string{
				"nsf return", "nsf declined", "returned item", "returned check",
				"returned ach", "returned payment", "returned debit",
				"return", "returned", "reject", "rejected", "declined",
				"reversal", "reverse", "non-sufficient funds", "insufficient funds",
				"r01", "r02", "r09", "r10", "r29",
			},
			PairingWindowDays: 3,
			TimeWeightPerDay:  20,
			SimilarityWeight:  0.4,
			MatchThreshold:    30,
		},
		Fraud: FraudConfig{
			DuplicatePrefixLength: 20,
			Duplicates:            CountBand{High: 5, Medium: 2, Impact: Impact{High: 25, Medium: 10}},

			RoundNumberMinimum: 1000,
			RoundNumberStep:    1000,
			RoundNumbers: RatioBand{
				HighRatio: 0.5, HighCount: 5, MediumRatio: 0.3, MediumCount: 3,
				Impact: Impact{High: 20, Medium: 10},
			},

			VolumeSpikeMultiplier: 3,
			MonthEndDay:           28,
			MonthEndRatio:         0.4,
			Timing:                CountBand{High: 3, Medium: 1, Impact: Impact{High: 15, Medium: 8}},

			VelocityMinCredits:   10,
			VelocityStdDeviation: 3,
			Velocity:             CountBand{High: 5, Medium: 2, Impact: Impact{High: 15, Medium: 8}},

			StructuringThresholds: []float64{10000, 5000, 3000},
			StructuringMargin:     0.05,
			Structuring:           CountBand{High: 4, Medium: 2, Impact: Impact{High: 25, Medium: 12}},

			PairedAmountTolerance: 0.1,
			RepeatedAmountCount:   5,
			Unusual:               CountBand{High: 5, Medium: 2, Impact: Impact{High: 20, Medium: 10}},

			PersonalDepositPatterns: []string{"personal", "savings", "from checking", "my account", "self"},
			PersonalDepositMinimum:  3,
			KitingMinAmount:         5000,
			KitingWindowDays:        3,
			KitingTolerance:         0.2,
			KitingMinimum:           3,
			KitingHigh:              5,
			ManipulationImpact:      Impact{High: 25, Medium: 12},

			LoanPatterns:   []string{"loan", "advance", "funding", "credit line", "loc ", "sba"},
			RefundPatterns: []string{"refund", "return", "reversal", "credit back"},
			FakeRevenue:    CountBand{High: 5, Medium: 2, Impact: Impact{High: 20, Medium: 10}},

			GapMinTransactions: 10,
			GapDays:            7,
			Gaps:               CountBand{High: 3, Medium: 1, Impact: Impact{High: 15, Medium: 8}},

			Weekend: RatioBand{
				HighRatio: 0.3, HighCount: 10, MediumRatio: 0.2, MediumCount: 5,
				Impact: Impact{High: 15, Medium: 8},
			},

			RevenueVarianceHigh:   50,
			RevenueVarianceMedium: 25,
			CrossReferenceImpact:  Impact{High: 20, Medium: 10},

			DeclineBelow:         40,
			ReviewBelow:          60,
			CautionBelow:         80,
			DeclineHighFlagCount: 3,
		},
		Stats: StatsConfig{
			HighVolatilityCV:         30,
			MediumVolatilityCV:       15,
			StableTrendPercent:       1,
			SeriesChangeMinimum:      5,
			SeriesChangeMinCount:     3,
			SeasonalMinMonths:        6,
			SeasonalSpreadRatio:      0.3,
			SeasonalDeviationPercent: 20,
			HighlyVariablePeakShare:  0.3,
			DeclineRecentMonths:      3,
			DeclineHighPercent:       30,
			DeclineMediumPercent:     15,
		},
		BankAnalysis: BankAnalysisConfig{
			BaseScore:                 50,
			ConsistencyExcellent:      80,
			ConsistencyGood:           60,
			ConsistencyPoor:           40,
			StrongGrowthPercent:       10,
			SignificantDeclinePercent: 20,
			NSFPenaltyPerEvent:        5,
			NSFMaxPenalty:             25,
			HighBurdenPercent:         30,
			ModerateBurdenPercent:     15,
			MultipleFunders:           3,
			CashFlowStrong:            0.8,
			CashFlowGood:              0.6,
			CashFlowWeak:              0.4,
			HighBalance:               15000,
			GoodBalance:               5000,
			LowBalance:                1000,
			NSFHighFrequency:          2,
			NSFMediumFrequency:        0.5,
		},
		Scoring: ScoringConfig{
			Weights: map[string]float64{
				ComponentCredit:   0.25,
				ComponentBank:     0.25,
				ComponentIdentity: 0.15,
				ComponentStacking: 0.15,
				ComponentUCC:      0.10,
				ComponentIndustry: 0.10,
			},
			CreditBands: []ScoreBand{
				{Min: 750, Score: 100},
				{Min: 700, Score: 80},
				{Min: 650, Score: 60},
				{Min: 600, Score: 40},
				{Min: 550, Score: 20},
			},
			BankScore: BankScoreConfig{
				Base:                    50,
				ConsistencyExcellent:    0.8,
				ConsistencyExcellentAdd: 20,
				ConsistencyGood:         0.6,
				ConsistencyGoodAdd:      10,
				ConsistencyPoorPenalty:  10,
				BalanceHigh:             10000,
				BalanceHighAdd:          15,
				BalanceMedium:           5000,
				BalanceMediumAdd:        10,
				BalanceLow:              1000,
				BalanceLowPenalty:       15,
				NSFPenaltyPer:           5,
				NSFMaxPenalty:           25,
				NegativeDayPenaltyPer:   2,
				NegativeDayMaxPenalty:   20,
			},
			IdentityDefault: 50,
			StackingDefault: 100,
			UCCDefault:      100,
			IndustryRisk: IndustryRiskConfig{
				Low: []string{
					"Healthcare", "Professional Services", "Technology", "Education",
					"Manufacturing", "Wholesale Trade", "Information Technology",
					"Accounting", "Legal Services", "Engineering",
				},
				Medium: []string{
					"Retail Trade", "Transportation", "Real Estate", "Construction",
					"Food Services", "Accommodation", "Auto Repair", "Landscaping",
					"Cleaning Services", "Personal Services",
				},
				High: []string{
					"Gambling", "Adult Entertainment", "Cannabis", "Firearms",
					"Cryptocurrency", "Telemarketing", "Payday Lending",
					"Debt Collection", "Money Services", "Pawn Shops",
				},
				HighScore:    30,
				MediumScore:  60,
				LowScore:     90,
				DefaultScore: 70,
			},
			Thresholds: DecisionThresholds{AutoApprove: 80, ManualReview: 50, AutoDecline: 30},
			FraudImpact: FraudImpactConfig{
				Enabled:           true,
				ScoreThreshold:    60,
				PenaltyMultiplier: 0.3,
			},
			AutoFlags: AutoFlagConfig{
				VeryLowCredit:         500,
				HighStackingMCAs:      3,
				NewBusinessMonths:     6,
				LowMonthlyRevenue:     10000,
				HighNSFCount:          5,
				RevenueDeclinePercent: -20,
			},
			QuickCheck: QuickCheckConfig{
				BaseScore:          50,
				VeryLowCredit:      500,
				VeryLowPenalty:     25,
				GoodCredit:         700,
				GoodCreditBonus:    15,
				MaxActiveMCAs:      4,
				PerMCAPenalty:      10,
				LowRevenue:         10000,
				LowRevenuePenalty:  15,
				NewBusinessMonths:  6,
				NewBusinessPenalty: 20,
			},
			LegacyTiers: []LegacyTier{
				{MinScore: 80, FactorRate: 1.15, MaxTermMonths: 12, ApprovalPercentage: 1.0, Holdback: 0.10},
				{MinScore: 60, FactorRate: 1.25, MaxTermMonths: 9, ApprovalPercentage: 0.8, Holdback: 0.12},
				{MinScore: 40, FactorRate: 1.35, MaxTermMonths: 6, ApprovalPercentage: 0.6, Holdback: 0.15},
				{MinScore: 0, FactorRate: 1.45, MaxTermMonths: 4, ApprovalPercentage: 0.4, Holdback: 0.18},
			},
			LegacyBusinessDays: 22,
			SummaryFlagLimit:   10,
		},
		Pricing: PricingConfig{
			FactorTiers: []FactorTier{
				{Name: "Premium", MinRiskScore: 80, BaseRate: 1.15, MaxRate: 1.25, MaxTermMonths: 12, ApprovalPercentage: 1.0},
				{Name: "Standard", MinRiskScore: 60, BaseRate: 1.20, MaxRate: 1.35, MaxTermMonths: 9, ApprovalPercentage: 0.85},
				{Name: "Moderate Risk", MinRiskScore: 40, BaseRate: 1.30, MaxRate: 1.45, MaxTermMonths: 6, ApprovalPercentage: 0.70},
				{Name: "High Risk", MinRiskScore: 20, BaseRate: 1.40, MaxRate: 1.55, MaxTermMonths: 4, ApprovalPercentage: 0.50},
				{Name: "Very High Risk", MinRiskScore: 0, BaseRate: 1.50, MaxRate: 1.65, MaxTermMonths: 3, ApprovalPercentage: 0.30},
			},
			CreditTiers: []CreditTier{
				{Name: "excellent", MinScore: 750, FactorAdjustment: -0.05, TermAdjustment: 2, ApprovalBoost: 0.10},
				{Name: "good", MinScore: 680, FactorAdjustment: -0.02, TermAdjustment: 1, ApprovalBoost: 0.05},
				{Name: "fair", MinScore: 620},
				{Name: "poor", MinScore: 550, FactorAdjustment: 0.05, TermAdjustment: -1, ApprovalBoost: -0.10},
				{Name: "very_poor", MinScore: 0, FactorAdjustment: 0.10, TermAdjustment: -2, ApprovalBoost: -0.20},
			},
			IndustryAdjustments: map[string]IndustryAdjustment{
				"healthcare":            {RiskLevel: "low", FactorAdjustment: -0.03, TermAdjustment: 1},
				"professional_services": {RiskLevel: "low", FactorAdjustment: -0.02, TermAdjustment: 1},
				"dental":                {RiskLevel: "low", FactorAdjustment: -0.03, TermAdjustment: 1},
				"retail":                {RiskLevel: "medium"},
				"ecommerce":             {RiskLevel: "medium"},
				"auto_repair":           {RiskLevel: "medium"},
				"beauty_salon":          {RiskLevel: "medium", FactorAdjustment: 0.02},
				"restaurant":            {RiskLevel: "medium_high", FactorAdjustment: 0.05, TermAdjustment: -1, MaxWithholdOverride: floatPtr(0.18)},
				"bar_nightclub":         {RiskLevel: "medium_high", FactorAdjustment: 0.08, TermAdjustment: -1, MaxWithholdOverride: floatPtr(0.15)},
				"food_truck":            {RiskLevel: "medium_high", FactorAdjustment: 0.07, TermAdjustment: -1, MaxWithholdOverride: floatPtr(0.15)},
				"construction":          {RiskLevel: "high", FactorAdjustment: 0.08, TermAdjustment: -2, MaxWithholdOverride: floatPtr(0.15)},
				"trucking":              {RiskLevel: "high", FactorAdjustment: 0.10, TermAdjustment: -2, MaxWithholdOverride: floatPtr(0.15)},
				"landscaping":           {RiskLevel: "high", FactorAdjustment: 0.08, TermAdjustment: -1, MaxWithholdOverride: floatPtr(0.15)},
				"cannabis":              {RiskLevel: "very_high", FactorAdjustment: 0.15, TermAdjustment: -3, MaxWithholdOverride: floatPtr(0.12)},
				"gambling":              {RiskLevel: "very_high", FactorAdjustment: 0.15, TermAdjustment: -3, MaxWithholdOverride: floatPtr(0.12)},
			},
			PositionAdjustments: map[int]PositionAdjustment{
				1: {FactorAdjustment: 0, ApprovalModifier: 1.0},
				2: {FactorAdjustment: 0.05, ApprovalModifier: 0.85},
				3: {FactorAdjustment: 0.10, ApprovalModifier: 0.70},
				4: {FactorAdjustment: 0.15, ApprovalModifier: 0.50},
			},
			VolatilityAdjustments: map[string]VolatilityAdjustment{
				"low":    {FactorAdjustment: -0.02, TermAdjustment: 1, ApprovalBoost: 0.05},
				"medium": {},
				"high":   {FactorAdjustment: 0.05, TermAdjustment: -1, ApprovalBoost: -0.10},
			},
			Holdback: HoldbackConfig{
				Base: 0.10,
				RiskAdjustments: map[string]float64{
					"low":       -0.02,
					"medium":    0,
					"high":      0.03,
					"very_high": 0.05,
				},
				PerPositionAddition: 0.02,
				Min:                 0.08,
				Max:                 0.25,
			},
			Bounds: OfferBounds{
				MinFactorRate:   1.10,
				MaxFactorRate:   1.75,
				MinTermMonths:   2,
				MaxTermMonths:   18,
				MinDailyPayment: 50,
				MaxDailyPayment: 50000,
				MinHoldback:     0.05,
				MaxHoldback:     0.30,
			},
			Defaults: OfferDefaults{
				Position:        1,
				TermMonths:      6,
				RiskScore:       50,
				VolatilityLevel: "medium",
			},
			MinFunding:       5000,
			MaxFunding:       500000,
			MaxPositions:     4,
			MinTermMonths:    2,
			MinApproval:      0.10,
			MaxApproval:      1.00,
			ReducedThreshold: 0.99,
			ScenarioTerms:    []int{3, 6, 9, 12},
		},
		Stacking: StackingConfig{
			MinFunding:   5000,
			MaxPositions: 4,
			BurdenBands: []BurdenBand{
				{MinRiskScore: 80, MaxBurdenPercent: 20},
				{MinRiskScore: 60, MaxBurdenPercent: 18},
				{MinRiskScore: 40, MaxBurdenPercent: 15},
				{MinRiskScore: 0, MaxBurdenPercent: 12},
			},
			Typical: []TypicalTerms{
				{MinRiskScore: 80, FactorRate: 1.15, TermMonths: 12},
				{MinRiskScore: 60, FactorRate: 1.25, TermMonths: 9},
				{MinRiskScore: 40, FactorRate: 1.35, TermMonths: 6},
				{MinRiskScore: 0, FactorRate: 1.45, TermMonths: 4},
			},
			AtCapacityBurdenPercent: 5,
			MinTermMonths:           3,
			StackingPremium:         0.03,
			ReductionPerPosition:    0.10,
			Holdback: StackingHoldback{
				Base:                0.10,
				LowScore:            60,
				LowScoreAddition:    0.03,
				VeryLowScore:        40,
				VeryLowAddition:     0.03,
				PerPositionAddition: 0.02,
				Max:                 0.25,
			},
			Multipliers: CapacityMultipliers{
				PoorBankScore: 40,
				PoorCashFlow:  0.5,
				FairBankScore: 60,
				FairCashFlow:  0.75,
				HighNSF:       0.7,
			},
			HighExposureRatio:         1.5,
			MediumExposureRatio:       1.0,
			HighOverlapRatio:          0.75,
			SustainableNetCashPercent: 40,
			ReducedAmountShare:        0.5,
			Buyout: BuyoutConfig{
				MaxFundingShare:  0.7,
				NearTermMonths:   2,
				NearTermDiscount: 0.05,
				MidTermMonths:    4,
				MidTermDiscount:  0.02,
			},
		},
		Signals: SignalsConfig{
			Timeout:          5 * time.Second,
			CacheTTL:         15 * time.Minute,
			FailureWindow:    time.Hour,
			RequiredForOffer: []SignalKind{SignalStacking},
		},
	}
}
