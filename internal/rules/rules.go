// Package rules is the deterministic, pattern-based ad copy classifier.
package rules

import (
	"regexp"
	"strings"

	"github.com/TobiSchelling/adreport/internal/creative"
	"github.com/TobiSchelling/adreport/internal/taxonomy"
)

// HookSampleSize is how many runes of headline and primary text are scanned
// for the opening hook.
const HookSampleSize = 500

// Matcher pairs a taxonomy label with the pattern that detects it.
type Matcher struct {
	Label   string
	Pattern *regexp.Regexp
}

// HookMatchers is evaluated in order and the first match wins. Reordering
// this slice changes classification results.
var HookMatchers = []Matcher{
	{taxonomy.HookPainAgitation, regexp.MustCompile(`(?i)\b(tired of|sick of|fed up|struggling|struggle with|frustrated|stop wasting|hate (it )?when|no more|still (dealing|suffering))\b`)},
	{taxonomy.HookSocialProof, regexp.MustCompile(`(?i)(\b\d[\d,.]*\s*(k|m)?\+?\s*(happy )?(customers|people|users|reviews|members|families|moms|parents)\b|\bjoin (the )?(thousands|millions)\b|\b(best[- ]?selling|loved by|rated #?1|5[- ]star)\b)`)},
	{taxonomy.HookOfferLed, regexp.MustCompile(`(?i)(\b\d{1,2}\s?% off\b|\bbuy one,? get one\b|\bbogo\b|\bfree (shipping|trial|gift)\b|\bsave \$\d+)`)},
	{taxonomy.HookUrgency, regexp.MustCompile(`(?i)\b(today only|limited time|ends (tonight|soon|today|sunday|midnight)|last chance|hurry|don'?t miss|only \d+ left|while supplies last|final hours)\b`)},
	{taxonomy.HookStatistic, regexp.MustCompile(`(?i)(\b\d+(\.\d+)?\s?%|\b\d+x\b|\b\d+ out of \d+\b)`)},
	{taxonomy.HookQuestion, regexp.MustCompile(`^[^.!?\n]{3,140}\?`)},
	{taxonomy.HookCuriosityGap, regexp.MustCompile(`(?i)\b(secret|the truth about|nobody (tells|talks)|you won'?t believe|here'?s why|the real reason|this one (trick|thing)|what happens when)\b`)},
	{taxonomy.HookAuthority, regexp.MustCompile(`(?i)\b(doctors?|dermatologists?|experts?|scientists?|clinically|award[- ]winning|recommended by|certified|engineers?)\b`)},
	{taxonomy.HookStory, regexp.MustCompile(`(?i)\b(when i (was|first|started)|i used to|my story|years ago|i never thought|we started)\b`)},
	{taxonomy.HookContrarian, regexp.MustCompile(`(?i)\b(stop (buying|using|doing)|forget (everything|about)|you'?re doing it wrong|myth|overrated|unpopular opinion)\b`)},
	{taxonomy.HookDirectBenefit, regexp.MustCompile(`(?i)\b(get|save|achieve|enjoy|boost|improve|feel|sleep better|look|transform|unlock)\b`)},
}

// ProofMatchers are evaluated independently; every matching type is reported.
var ProofMatchers = []Matcher{
	{taxonomy.ProofTestimonial, regexp.MustCompile(`(?i)(["“][^"”]{10,}["”]|\b(says|said|review(ed)?|testimonial|customers? love)\b)`)},
	{taxonomy.ProofStatistic, regexp.MustCompile(`(?i)(\b\d+(\.\d+)?\s?%|\b\d+x\b|\b\d+ out of \d+\b)`)},
	{taxonomy.ProofCaseStudy, regexp.MustCompile(`(?i)\b(case study|how \w+ (grew|increased|cut|saved)|results from)\b`)},
	{taxonomy.ProofGuarantee, regexp.MustCompile(`(?i)\b(guarantee(d)?|money[- ]back|risk[- ]free|no questions asked)\b`)},
	{taxonomy.ProofCertificate, regexp.MustCompile(`(?i)\b(certified|fda[- ]approved|iso \d+|usda organic|dermatologist[- ]tested|clinically (proven|tested))\b`)},
	{taxonomy.ProofPress, regexp.MustCompile(`(?i)\b(as seen (on|in)|featured (in|on)|forbes|new york times|techcrunch|vogue)\b`)},
	{taxonomy.ProofExpert, regexp.MustCompile(`(?i)\b((doctor|dermatologist|expert|vet|nutritionist)[- ]?(recommended|approved|endorsed)|recommended by)\b`)},
	{taxonomy.ProofBeforeAfter, regexp.MustCompile(`(?i)\b(before (and|&) after|before/after|in just \d+ (days|weeks))\b`)},
	{taxonomy.ProofDemo, regexp.MustCompile(`(?i)\b(watch (how|as)|see (it|how it) works|demo|in action|live test)\b`)},
	{taxonomy.ProofSocialCount, regexp.MustCompile(`(?i)\b\d[\d,.]*\s*(k|m)?\+?\s*(customers|users|reviews|downloads|orders|sold|members)\b`)},
}

// OfferPattern matches literal offer phrases.
var OfferPattern = regexp.MustCompile(`(?i)(\b\d{1,2}\s?% off\b|\bfree (shipping|delivery|trial|gift|returns|consultation)\b|\bbuy one,? get one( free)?\b|\bbogo\b|\bsave (up to )?\$?\d+\b|\b(discount|coupon|promo code)\b|\blimited[- ]time offer\b|\bbundle (and|&) save\b|\b\d+ for \$\d+\b)`)

var (
	tofuCues = regexp.MustCompile(`(?i)\b(discover|learn|introducing|meet|did you know|what is|why|new|curious|explore|ever wonder(ed)?)\b`)
	mofuCues = regexp.MustCompile(`(?i)\b(compare|vs\.?|versus|how it works|reviews?|results|guide|benefits|see why|switch(ed)?|better than|proven|ingredients)\b`)
	bofuCues = regexp.MustCompile(`(?i)(\b(buy|shop now|order( now)?|checkout|get yours|sale|discount|coupon|today only|limited time|free shipping|add to cart)\b|\b\d{1,2}\s?% off\b)`)
)

// Classify runs every detector against the ad's copy.
func Classify(ad creative.Ad) creative.RuleClassification {
	text := ad.CopyText()
	return creative.RuleClassification{
		HookType:    DetectHook(ad.HookSample(HookSampleSize)),
		ProofTypes:  DetectProof(text),
		Offers:      DetectOffers(text),
		FunnelStage: DetectFunnelStage(text),
	}
}

// Unclassified is the rule output for an ad no detector could run on.
func Unclassified() creative.RuleClassification {
	return creative.RuleClassification{
		HookType:    taxonomy.Unknown,
		ProofTypes:  []string{},
		Offers:      []string{},
		FunnelStage: taxonomy.Unknown,
	}
}

// DetectHook returns the label of the first hook matcher that fires.
func DetectHook(sample string) string {
	sample = strings.TrimSpace(sample)
	if sample == "" {
		return taxonomy.Unknown
	}
	for _, m := range HookMatchers {
		if m.Pattern.MatchString(sample) {
			return m.Label
		}
	}
	return taxonomy.Unknown
}

// DetectProof returns every proof type whose pattern matches, in matcher order.
func DetectProof(text string) []string {
	found := []string{}
	if strings.TrimSpace(text) == "" {
		return found
	}
	for _, m := range ProofMatchers {
		if m.Pattern.MatchString(text) {
			found = append(found, m.Label)
		}
	}
	return found
}

// DetectOffers returns the literal offer phrases found, in first-seen order.
// Repeats that differ only in case or spacing are dropped.
func DetectOffers(text string) []string {
	offers := []string{}
	seen := make(map[string]bool)
	for _, match := range OfferPattern.FindAllString(text, -1) {
		key := strings.Join(strings.Fields(strings.ToLower(match)), " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		offers = append(offers, match)
	}
	return offers
}

// DetectFunnelStage tallies stage cues. Ties go to the later stage
// (BOFU > MOFU > TOFU); text with no cues at all is TOFU.
func DetectFunnelStage(text string) string {
	if strings.TrimSpace(text) == "" {
		return taxonomy.StageTOFU
	}
	tofu := len(tofuCues.FindAllStringIndex(text, -1))
	mofu := len(mofuCues.FindAllStringIndex(text, -1))
	bofu := len(bofuCues.FindAllStringIndex(text, -1))

	switch {
	case tofu == 0 && mofu == 0 && bofu == 0:
		return taxonomy.StageTOFU
	case bofu >= mofu && bofu >= tofu:
		return taxonomy.StageBOFU
	case mofu >= tofu:
		return taxonomy.StageMOFU
	default:
		return taxonomy.StageTOFU
	}
}
