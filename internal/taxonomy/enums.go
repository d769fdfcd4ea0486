package taxonomy

// Hook types, in the order the rule classifier gives them priority.
const (
	HookPainAgitation = "pain_agitation"
	HookSocialProof   = "social_proof"
	HookOfferLed      = "offer_led"
	HookUrgency       = "urgency"
	HookStatistic     = "statistic"
	HookQuestion      = "question"
	HookCuriosityGap  = "curiosity_gap"
	HookAuthority     = "authority"
	HookStory         = "story"
	HookContrarian    = "contrarian"
	HookDirectBenefit = "direct_benefit"
)

// Proof types.
const (
	ProofTestimonial = "testimonial"
	ProofStatistic   = "statistic"
	ProofCaseStudy   = "case_study"
	ProofGuarantee   = "guarantee"
	ProofCertificate = "certification"
	ProofPress       = "press_mention"
	ProofExpert      = "expert_endorsement"
	ProofBeforeAfter = "before_after"
	ProofDemo        = "demonstration"
	ProofSocialCount = "social_count"
)

func defaultEnums() []Enum {
	return []Enum{
		{
			Name: HookTypes,
			Values: []string{
				HookDirectBenefit, HookPainAgitation, HookSocialProof, HookCuriosityGap,
				HookQuestion, HookStatistic, HookUrgency, HookAuthority, HookStory,
				HookContrarian, HookOfferLed,
			},
			Fallback: Unknown,
		},
		{
			Name:     FunnelStages,
			Values:   []string{StageTOFU, StageMOFU, StageBOFU},
			Fallback: Unknown,
		},
		{
			Name: ProofTypes,
			Values: []string{
				ProofTestimonial, ProofStatistic, ProofCaseStudy, ProofGuarantee,
				ProofCertificate, ProofPress, ProofExpert, ProofBeforeAfter, ProofDemo,
				ProofSocialCount,
			},
			Fallback: Unknown,
		},
		{
			Name: ObjectionTypes,
			Values: []string{
				"price", "time", "trust", "complexity", "effectiveness", "switching_cost",
				"risk", "fit", "quality",
			},
			Fallback: Unknown,
		},
		{
			Name: OfferTypes,
			Values: []string{
				"discount", "free_trial", "free_shipping", "bundle", "bogo", "gift",
				"limited_time", "guarantee", "financing", "free_consultation",
			},
			Fallback: Unknown,
		},
		{
			Name: CTATypes,
			Values: []string{
				"shop_now", "learn_more", "sign_up", "get_offer", "book_now", "download",
				"contact_us", "subscribe", "watch_more", "apply_now", "get_quote", "order_now",
			},
			Fallback: Unknown,
		},
		{
			Name: DestinationTypes,
			Values: []string{
				"product_page", "collection_page", "landing_page", "homepage", "lead_form",
				"quiz", "app_store", "checkout", "content",
			},
			Fallback: Unknown,
		},
		{
			Name: MOFUJobTypes,
			Values: []string{
				"educate", "compare", "handle_objection", "build_trust", "demonstrate",
				"nurture",
			},
			Fallback: NotApplicable,
		},
		{
			Name:     DecisionTypes,
			Values:   []string{"replace", "refine", "keep"},
			Fallback: Unknown,
		},
		{
			Name:     MismatchLevels,
			Values:   []string{MismatchLow, MismatchMedium, MismatchHigh},
			Fallback: Null,
		},
	}
}
