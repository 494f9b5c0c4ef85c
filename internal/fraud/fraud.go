// Package fraud scores bank statements for signs of fabrication or manipulation.
package fraud

import (
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/money"
	"github.com/opensource-finance/truerev/internal/stats"
)

// Risk levels.
const (
	LevelLow      = "low"
	LevelMedium   = "medium"
	LevelElevated = "elevated"
	LevelHigh     = "high"
)

// Recommendation actions.
const (
	RecommendDecline = "DECLINE"
	RecommendReview  = "MANUAL_REVIEW"
	RecommendCaution = "PROCEED_WITH_CAUTION"
	RecommendProceed = "PROCEED"
)

// Check names, in evaluation order.
const (
	CheckDuplicates   = "duplicate_transactions"
	CheckRoundNumbers = "round_number_deposits"
	CheckTiming       = "suspicious_timing"
	CheckVelocity     = "deposit_velocity"
	CheckStructuring  = "structured_deposits"
	CheckUnusual      = "unusual_patterns"
	CheckManipulation = "revenue_manipulation"
	CheckFakeRevenue  = "fake_revenue_indicators"
	CheckGaps         = "statement_gaps"
	CheckWeekend      = "weekend_anomalies"
	CheckCrossRef     = "cross_reference"
)

// RevenueChecker reports whether a credit was classified as revenue.
type RevenueChecker interface {
	IsRevenue(tx domain.Transaction) bool
}

// ApplicationData is the applicant's stated information used for cross referencing.
type ApplicationData struct {
	StatedMonthlyRevenue float64 `json:"monthly_revenue,omitempty"`
	BusinessName         string  `json:"business_name,omitempty"`
}

// Indicator is the outcome of one check.
type Indicator struct {
	Check       string   `json:"check"`
	RiskLevel   string   `json:"risk_level"`
	ScoreImpact float64  `json:"score_impact"`
	Count       int      `json:"count"`
	Ratio       *float64 `json:"ratio,omitempty"`
	Message     string   `json:"message"`
	Details     any      `json:"details,omitempty"`
}

// Flag is a check that raised a medium or high finding.
type Flag struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Details  any    `json:"details,omitempty"`
}

// FlagCount tallies flags by severity.
type FlagCount struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
}

// Recommendation is the suggested handling of the application.
type Recommendation struct {
	Action         string   `json:"action"`
	Reason         string   `json:"reason"`
	RequiresReview bool     `json:"requires_review"`
	ReviewFocus    []string `json:"review_focus,omitempty"`
}

// Analysis is the full fraud report.
type Analysis struct {
	FraudScore     float64        `json:"fraud_score"`
	RiskLevel      string         `json:"risk_level"`
	Indicators     []Indicator    `json:"indicators"`
	CrossReference *CrossRef      `json:"cross_reference,omitempty"`
	Flags          []Flag         `json:"flags"`
	FlagCount      FlagCount      `json:"flag_count"`
	Recommendation Recommendation `json:"recommendation"`
}

// Detector runs the fraud checks.
type Detector struct {
	cfg     domain.FraudConfig
	revenue RevenueChecker
}

// NewDetector creates a detector. With a nil checker every credit counts as revenue.
func NewDetector(cfg domain.FraudConfig, revenue RevenueChecker) *Detector {
	return &Detector{cfg: cfg, revenue: revenue}
}

func (d *Detector) isRevenue(tx domain.Transaction) bool {
	if !tx.IsCredit() {
		return false
	}
	if d.revenue == nil {
		return true
	}
	return d.revenue.IsRevenue(tx)
}

// Analyze runs every check over the valid transactions and scores the statement.
// The score starts at 100; high findings deduct their full impact and medium findings half.
func (d *Detector) Analyze(txs []domain.Transaction, app *ApplicationData) Analysis {
	valid := domain.ValidTransactions(txs)
	if skipped := len(txs) - len(valid); skipped > 0 {
		slog.Debug("fraud analysis skipped invalid transactions", "skipped", skipped)
	}

	indicators := []Indicator{
		d.checkDuplicates(valid),
		d.checkRoundNumbers(valid),
		d.checkTiming(valid),
		d.checkVelocity(valid),
		d.checkStructuring(valid),
		d.checkUnusual(valid),
		d.checkManipulation(valid),
		d.checkFakeRevenue(valid),
		d.checkGaps(valid),
		d.checkWeekend(valid),
	}

	score := 100.0
	flags := []Flag{}
	for _, ind := range indicators {
		switch ind.RiskLevel {
		case LevelHigh:
			score -= ind.ScoreImpact
		case LevelMedium:
			score -= ind.ScoreImpact / 2
		default:
			continue
		}
		flags = append(flags, Flag{Type: ind.Check, Severity: ind.RiskLevel, Message: ind.Message, Details: ind.Details})
	}

	out := Analysis{Indicators: indicators}
	if app != nil {
		cr := d.crossReference(valid, *app)
		out.CrossReference = &cr
		if cr.RiskLevel != LevelLow {
			score -= cr.ScoreImpact
			flags = append(flags, cr.Flags...)
		}
	}

	score = money.Clamp(score, 0, 100)
	out.FraudScore = money.Round2(score)
	out.RiskLevel = riskLevel(score)
	out.Flags = flags
	for _, f := range flags {
		switch f.Severity {
		case LevelHigh:
			out.FlagCount.High++
		case LevelMedium:
			out.FlagCount.Medium++
		}
	}
	out.Recommendation = d.recommend(score, flags, out.FlagCount.High)
	return out
}

func riskLevel(score float64) string {
	switch {
	case score >= 80:
		return LevelLow
	case score >= 60:
		return LevelMedium
	case score >= 40:
		return LevelElevated
	default:
		return LevelHigh
	}
}

func (d *Detector) recommend(score float64, flags []Flag, high int) Recommendation {
	switch {
	case score < d.cfg.DeclineBelow || high >= d.cfg.DeclineHighFlagCount:
		return Recommendation{Action: RecommendDecline, Reason: "Multiple high-risk fraud indicators detected"}
	case score < d.cfg.ReviewBelow || high >= 1:
		focus := make([]string, len(flags))
		for i, f := range flags {
			focus[i] = f.Type
		}
		return Recommendation{
			Action:         RecommendReview,
			Reason:         "Fraud indicators require human review",
			RequiresReview: true,
			ReviewFocus:    focus,
		}
	case score < d.cfg.CautionBelow:
		return Recommendation{Action: RecommendCaution, Reason: "Minor indicators present but acceptable"}
	default:
		return Recommendation{Action: RecommendProceed, Reason: "No significant fraud indicators"}
	}
}

// gradeCount grades a finding count against a band.
func gradeCount(b domain.CountBand, n int) (string, float64) {
	switch {
	case n >= b.High:
		return LevelHigh, b.Impact.High
	case n >= b.Medium:
		return LevelMedium, b.Impact.Medium
	default:
		return LevelLow, 0
	}
}

// gradeRatio grades a share of credits that must also reach a minimum count.
func gradeRatio(b domain.RatioBand, ratio float64, n int) (string, float64) {
	switch {
	case ratio > b.HighRatio && n >= b.HighCount:
		return LevelHigh, b.Impact.High
	case ratio > b.MediumRatio && n >= b.MediumCount:
		return LevelMedium, b.Impact.Medium
	default:
		return LevelLow, 0
	}
}

func credits(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.IsCredit() {
			out = append(out, tx)
		}
	}
	return out
}

// groupByDate buckets transactions by date and returns the dates in ascending order.
func groupByDate(txs []domain.Transaction) (map[string][]domain.Transaction, []string) {
	by := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		by[tx.Date] = append(by[tx.Date], tx)
	}
	dates := make([]string, 0, len(by))
	for d := range by {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return by, dates
}

func daysApart(a, b domain.Transaction) float64 {
	ta, _ := a.Day()
	tb, _ := b.Day()
	return math.Abs(tb.Sub(ta).Hours() / 24)
}

func amountKey(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func containsAny(s string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return p, true
		}
	}
	return "", false
}

func ratioPercent(r float64) *float64 {
	v := money.Round2(r * 100)
	return &v
}

// DuplicatePair is a line repeating an earlier line's date, amount and description prefix.
type DuplicatePair struct {
	First  int     `json:"transaction_1"`
	Second int     `json:"transaction_2"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
}

func (d *Detector) checkDuplicates(txs []domain.Transaction) Indicator {
	seen := make(map[string]int)
	dups := []DuplicatePair{}
	for i, tx := range txs {
		key := tx.Date + "|" + amountKey(tx.Amount) + "|" + prefix(tx.Description, d.cfg.DuplicatePrefixLength)
		if first, ok := seen[key]; ok {
			dups = append(dups, DuplicatePair{First: first, Second: i, Amount: tx.Amount, Date: tx.Date})
		}
		seen[key] = i
	}

	level, impact := gradeCount(d.cfg.Duplicates, len(dups))
	msg := "No duplicates found"
	if len(dups) > 0 {
		msg = "Found " + strconv.Itoa(len(dups)) + " duplicate transactions"
	}
	return Indicator{Check: CheckDuplicates, RiskLevel: level, ScoreImpact: impact, Count: len(dups), Message: msg, Details: dups}
}

// FlaggedCredit is a credit singled out by a check.
type FlaggedCredit struct {
	Index       int     `json:"index,omitempty"`
	Type        string  `json:"type,omitempty"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Pattern     string  `json:"pattern,omitempty"`
}

func (d *Detector) checkRoundNumbers(txs []domain.Transaction) Indicator {
	cr := credits(txs)
	round := []FlaggedCredit{}
	for i, tx := range cr {
		if tx.Amount >= d.cfg.RoundNumberMinimum && math.Mod(tx.Amount, d.cfg.RoundNumberStep) == 0 {
			round = append(round, FlaggedCredit{Index: i, Amount: tx.Amount, Date: tx.Date, Description: tx.Description})
		}
	}

	ratio := 0.0
	if len(cr) > 0 {
		ratio = float64(len(round)) / float64(len(cr))
	}
	level, impact := gradeRatio(d.cfg.RoundNumbers, ratio, len(round))
	msg := "Round number deposits within normal range"
	if level != LevelLow {
		msg = "Unusual number of round-figure deposits (" + strconv.Itoa(len(round)) + ")"
	}
	n := len(round)
	if n > 10 {
		round = round[:10]
	}
	return Indicator{Check: CheckRoundNumbers, RiskLevel: level, ScoreImpact: impact, Count: n, Ratio: ratioPercent(ratio), Message: msg, Details: round}
}

// TimingIssue is a high-volume day or month-end clustering.
type TimingIssue struct {
	Type    string   `json:"type"`
	Date    string   `json:"date,omitempty"`
	Count   int      `json:"count,omitempty"`
	Average float64  `json:"average,omitempty"`
	Ratio   *float64 `json:"ratio,omitempty"`
}

func (d *Detector) checkTiming(txs []domain.Transaction) Indicator {
	issues := []TimingIssue{}

	by, dates := groupByDate(txs)
	avg := float64(len(txs)) / float64(max(1, len(dates)))
	for _, date := range dates {
		if n := len(by[date]); float64(n) > avg*d.cfg.VolumeSpikeMultiplier {
			issues = append(issues, TimingIssue{Type: "high_volume_day", Date: date, Count: n, Average: money.Round2(avg)})
		}
	}

	cr := credits(txs)
	monthEnd := 0
	for _, tx := range cr {
		if day, ok := tx.Day(); ok && day.Day() >= d.cfg.MonthEndDay {
			monthEnd++
		}
	}
	if len(cr) > 0 {
		if ratio := float64(monthEnd) / float64(len(cr)); ratio > d.cfg.MonthEndRatio {
			issues = append(issues, TimingIssue{Type: "month_end_clustering", Ratio: ratioPercent(ratio)})
		}
	}

	level, impact := gradeCount(d.cfg.Timing, len(issues))
	msg := "No timing issues detected"
	if len(issues) > 0 {
		msg = "Suspicious timing patterns detected"
	}
	return Indicator{Check: CheckTiming, RiskLevel: level, ScoreImpact: impact, Count: len(issues), Message: msg, Details: issues}
}

// Outlier is a day whose credit total deviates far from the mean.
type Outlier struct {
	Date      string  `json:"date"`
	Amount    float64 `json:"amount"`
	Deviation float64 `json:"deviation"`
}

func (d *Detector) checkVelocity(txs []domain.Transaction) Indicator {
	cr := credits(txs)
	if len(cr) < d.cfg.VelocityMinCredits {
		return Indicator{Check: CheckVelocity, RiskLevel: LevelLow, Message: "Insufficient data for velocity analysis"}
	}

	by, dates := groupByDate(cr)
	totals := make([]float64, len(dates))
	for i, date := range dates {
		for _, tx := range by[date] {
			totals[i] += tx.Amount
		}
	}
	mean := stats.Mean(totals)
	sd := stats.StdDev(totals)

	outliers := []Outlier{}
	if sd > 0 {
		for i, v := range totals {
			if math.Abs(v-mean) > d.cfg.VelocityStdDeviation*sd {
				outliers = append(outliers, Outlier{Date: dates[i], Amount: v, Deviation: money.Round2((v - mean) / sd)})
			}
		}
	}

	level, impact := gradeCount(d.cfg.Velocity, len(outliers))
	msg := "Deposit velocity is consistent"
	if len(outliers) > 0 {
		msg = "Unusual deposit velocity spikes detected"
	}
	return Indicator{Check: CheckVelocity, RiskLevel: level, ScoreImpact: impact, Count: len(outliers), Message: msg, Details: outliers}
}

// StructuredDeposit is a credit just below a reporting threshold.
type StructuredDeposit struct {
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"`
	Threshold float64 `json:"threshold"`
	BelowBy   float64 `json:"below_by"`
}

func (d *Detector) checkStructuring(txs []domain.Transaction) Indicator {
	found := []StructuredDeposit{}
	for _, tx := range credits(txs) {
		for _, t := range d.cfg.StructuringThresholds {
			if tx.Amount >= t*(1-d.cfg.StructuringMargin) && tx.Amount < t {
				found = append(found, StructuredDeposit{Amount: tx.Amount, Date: tx.Date, Threshold: t, BelowBy: money.Round2(t - tx.Amount)})
			}
		}
	}

	level, impact := gradeCount(d.cfg.Structuring, len(found))
	msg := "No structured deposit patterns"
	if len(found) > 0 {
		msg = "Potential structured deposits detected"
	}
	return Indicator{Check: CheckStructuring, RiskLevel: level, ScoreImpact: impact, Count: len(found), Message: msg, Details: found}
}

// UnusualPattern is a same-day in-and-out or a repeated exact amount.
type UnusualPattern struct {
	Type   string  `json:"type"`
	Date   string  `json:"date,omitempty"`
	Credit float64 `json:"credit,omitempty"`
	Debit  float64 `json:"debit,omitempty"`
	Amount float64 `json:"amount,omitempty"`
	Count  int     `json:"count,omitempty"`
}

func (d *Detector) checkUnusual(txs []domain.Transaction) Indicator {
	patterns := []UnusualPattern{}

	by, dates := groupByDate(txs)
	for _, date := range dates {
		day := by[date]
		for _, c := range day {
			if !c.IsCredit() {
				continue
			}
			for _, db := range day {
				if db.IsCredit() {
					continue
				}
				if math.Abs(c.Amount-db.Amount)/c.Amount < d.cfg.PairedAmountTolerance {
					patterns = append(patterns, UnusualPattern{Type: "same_day_match", Date: date, Credit: c.Amount, Debit: db.Amount})
				}
			}
		}
	}

	counts := make(map[string]int)
	order := []string{}
	amounts := make(map[string]float64)
	for _, tx := range txs {
		k := amountKey(tx.Amount)
		if counts[k] == 0 {
			order = append(order, k)
			amounts[k] = tx.Amount
		}
		counts[k]++
	}
	for _, k := range order {
		if counts[k] >= d.cfg.RepeatedAmountCount {
			patterns = append(patterns, UnusualPattern{Type: "repetitive_amount", Amount: amounts[k], Count: counts[k]})
		}
	}

	level, impact := gradeCount(d.cfg.Unusual, len(patterns))
	msg := "Transaction patterns appear normal"
	if len(patterns) > 0 {
		msg = "Unusual transaction patterns detected"
	}
	return Indicator{Check: CheckUnusual, RiskLevel: level, ScoreImpact: impact, Count: len(patterns), Message: msg, Details: patterns}
}

// ManipulationDetails lists the manipulation issues that reached their minimums.
type ManipulationDetails struct {
	PersonalDeposits []FlaggedCredit `json:"personal_deposits,omitempty"`
	PotentialKiting  int             `json:"potential_kiting,omitempty"`
}

func (d *Detector) checkManipulation(txs []domain.Transaction) Indicator {
	var details ManipulationDetails
	issues := 0

	var revenue []domain.Transaction
	for _, tx := range txs {
		if d.isRevenue(tx) {
			revenue = append(revenue, tx)
		}
	}

	personal := []FlaggedCredit{}
	for _, tx := range revenue {
		if p, ok := containsAny(strings.ToLower(tx.Description), d.cfg.PersonalDepositPatterns); ok {
			personal = append(personal, FlaggedCredit{Amount: tx.Amount, Date: tx.Date, Description: tx.Description, Pattern: p})
		}
	}
	if len(personal) >= d.cfg.PersonalDepositMinimum {
		details.PersonalDeposits = personal
		issues++
	}

	kiting := 0
	for _, c := range revenue {
		if c.Amount < d.cfg.KitingMinAmount {
			continue
		}
		for _, db := range txs {
			if db.IsCredit() || db.Amount < d.cfg.KitingMinAmount {
				continue
			}
			if daysApart(c, db) <= float64(d.cfg.KitingWindowDays) && math.Abs(c.Amount-db.Amount) < c.Amount*d.cfg.KitingTolerance {
				kiting++
			}
		}
	}
	if kiting >= d.cfg.KitingMinimum {
		details.PotentialKiting = kiting
		issues++
	}

	level, impact := LevelLow, 0.0
	switch {
	case issues >= 2 || details.PotentialKiting >= d.cfg.KitingHigh:
		level, impact = LevelHigh, d.cfg.ManipulationImpact.High
	case issues >= 1:
		level, impact = LevelMedium, d.cfg.ManipulationImpact.Medium
	}
	msg := "No manipulation indicators"
	if issues > 0 {
		msg = "Potential revenue manipulation indicators"
	}
	return Indicator{Check: CheckManipulation, RiskLevel: level, ScoreImpact: impact, Count: issues, Message: msg, Details: details}
}

func (d *Detector) checkFakeRevenue(txs []domain.Transaction) Indicator {
	found := []FlaggedCredit{}
	scan := func(kind string, patterns []string) {
		for _, tx := range txs {
			if !d.isRevenue(tx) {
				continue
			}
			if p, ok := containsAny(strings.ToLower(tx.Description), patterns); ok {
				found = append(found, FlaggedCredit{Type: kind, Amount: tx.Amount, Date: tx.Date, Description: tx.Description, Pattern: p})
			}
		}
	}
	scan("loan_as_revenue", d.cfg.LoanPatterns)
	scan("refund_as_revenue", d.cfg.RefundPatterns)

	level, impact := gradeCount(d.cfg.FakeRevenue, len(found))
	msg := "Revenue sources appear legitimate"
	if len(found) > 0 {
		msg = "Potential fake revenue indicators found"
	}
	return Indicator{Check: CheckFakeRevenue, RiskLevel: level, ScoreImpact: impact, Count: len(found), Message: msg, Details: found}
}

// Gap is a stretch of calendar days without any transaction.
type Gap struct {
	From string `json:"from"`
	To   string `json:"to"`
	Days int    `json:"days"`
}

func (d *Detector) checkGaps(txs []domain.Transaction) Indicator {
	if len(txs) < d.cfg.GapMinTransactions {
		return Indicator{Check: CheckGaps, RiskLevel: LevelLow, Message: "Insufficient data to check for gaps"}
	}

	_, dates := groupByDate(txs)
	gaps := []Gap{}
	for i := 1; i < len(dates); i++ {
		prev, _ := time.Parse(domain.DateLayout, dates[i-1])
		curr, _ := time.Parse(domain.DateLayout, dates[i])
		if days := int(math.Round(curr.Sub(prev).Hours() / 24)); days > d.cfg.GapDays {
			gaps = append(gaps, Gap{From: dates[i-1], To: dates[i], Days: days})
		}
	}

	level, impact := gradeCount(d.cfg.Gaps, len(gaps))
	msg := "No significant gaps in transaction dates"
	if len(gaps) > 0 {
		msg = "Statement gaps detected - possible edited statements"
	}
	return Indicator{Check: CheckGaps, RiskLevel: level, ScoreImpact: impact, Count: len(gaps), Message: msg, Details: gaps}
}

// WeekendDetails summarizes weekend credits.
type WeekendDetails struct {
	Count int     `json:"weekend_count"`
	Total float64 `json:"weekend_total"`
}

func (d *Detector) checkWeekend(txs []domain.Transaction) Indicator {
	weekend, total := 0, 0
	sum := 0.0
	for _, tx := range credits(txs) {
		total++
		day, _ := tx.Day()
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekend++
			sum += tx.Amount
		}
	}

	ratio := 0.0
	if total > 0 {
		ratio = float64(weekend) / float64(total)
	}
	level, impact := gradeRatio(d.cfg.Weekend, ratio, weekend)
	msg := "Weekend transaction pattern is normal"
	if level != LevelLow {
		msg = "Unusual number of weekend deposits"
	}
	return Indicator{
		Check:       CheckWeekend,
		RiskLevel:   level,
		ScoreImpact: impact,
		Count:       weekend,
		Ratio:       ratioPercent(ratio),
		Message:     msg,
		Details:     WeekendDetails{Count: weekend, Total: money.Round2(sum)},
	}
}
