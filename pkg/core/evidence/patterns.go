package evidence

import "regexp"

// The ten moat categories scanned in disclosure text. Names stay in Korean
// because they are carried through to the spreadsheet and dashboard layers.
const (
	MoatSwitchingCost  = "전환비용"
	MoatNetworkEffect  = "네트워크효과"
	MoatScaleEconomy   = "규모경제"
	MoatBrand          = "브랜드"
	MoatRegulatory     = "규제허가"
	MoatDataLearning   = "데이터학습"
	MoatPatentProcess  = "특허공정"
	MoatSupplyChain    = "공급망"
	MoatLockInStandard = "락인표준"
	MoatCostAdvantage  = "원가우위"
)

// AllMoatTypes lists every category in scan order.
var AllMoatTypes = []string{
	MoatSwitchingCost, MoatNetworkEffect, MoatScaleEconomy, MoatBrand,
	MoatRegulatory, MoatDataLearning, MoatPatentProcess, MoatSupplyChain,
	MoatLockInStandard, MoatCostAdvantage,
}

type moatPatternSet struct {
	keywords     []*regexp.Regexp
	antiPatterns []*regexp.Regexp
}

func compileAll(exprs []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// noisePatterns exclude governance/bylaw boilerplate contexts that keyword
// matches frequently land in (articles of incorporation, shareholder meeting
// resolutions, stock option grants, convertible bond filings).
var noisePatterns = compileAll([]string{
	`정관\s*[변일]`, `일부\s*개정`, `정관의\s*변경`,
	`주주총회\s*결의`, `배당\s*기산일`, `배당기산일`,
	`연혁`, `임원\s*현황`, `직원\s*현황`,
	`주식\s*매수선택권`, `스톡옵션`,
	`이사회\s*결의`, `감사\s*보고`,
	`전환사채\s*발행`, `신주인수권부사채`,
})

// moatPatterns maps each category to its keyword set and anti-patterns. The
// anti-patterns kill known false positives, e.g. convertible-bond conversion
// language colliding with switching-cost wording, or "network equipment"
// colliding with network effects.
var moatPatterns = map[string]moatPatternSet{
	MoatSwitchingCost: {
		keywords: compileAll([]string{
			`고객사.*통합`, `장기.*계약`, `인증.*요구`,
			`전환\s*비용이?\s*(?:높|크|발생|존재)`,
			`커스터마이징`, `독점.*공급`,
			`시스템.*연동`, `교체.*어렵`, `호환.*불가`,
			`고객.*이탈.*어렵`, `계약.*기간.*\d+년`,
		}),
		antiPatterns: compileAll([]string{
			`고객.*자유.*선택`, `경쟁.*입찰`,
			`전환사채`, `전환권`, `전환가[액격]`, `전환청구`,
			`전환\s*비율`, `전환\s*가격`, `주식\s*전환`,
			`CB\s*전환`, `BW\s*전환`, `사채.*전환`,
		}),
	},
	MoatNetworkEffect: {
		keywords: compileAll([]string{
			`사용자.*증가.*가치`, `플랫폼.*효과`,
			`양면.*시장`, `회원.*수.*\d+만`,
			`MAU.*\d+만`, `DAU.*\d+`, `네트워크\s*효과`,
			`이용자.*\d+만`, `가입자.*\d+만`,
		}),
		antiPatterns: compileAll([]string{
			`네트워크.*효과.*없`,
			`네트워크\s*장비`, `통신\s*네트워크`,
		}),
	},
	MoatScaleEconomy: {
		keywords: compileAll([]string{
			`시장\s*점유율\s*\d+`, `매출\s*\d+조`,
			`고정비.*분산`, `원가\s*절감.*\d+`,
			`규모의?\s*경제`, `대량\s*생산.*\d+`,
		}),
		antiPatterns: compileAll([]string{
			`규모가?\s*작`, `소규모`,
		}),
	},
	MoatBrand: {
		keywords: compileAll([]string{
			`브랜드\s*인지도`, `브랜드\s*가치.*\d+`,
			`고객\s*충성`, `프리미엄\s*가격`,
			`시장\s*(?:점유율|1위).*\d+%`, `No\.?\s*1`,
			`대표\s*브랜드`, `브랜드\s*파워`,
		}),
		antiPatterns: compileAll([]string{
			`브랜드.*약`, `인지도.*낮`,
			`제1위`, `제1호`,
			`1위\s*의결권`, `1위.*주주`,
		}),
	},
	MoatRegulatory: {
		keywords: compileAll([]string{
			`인허가`, `라이선스\s*(?:취득|보유)`,
			`면허\s*(?:취득|보유)`,
			`(?:FDA|식약처|CE)\s*(?:승인|허가|인증)`,
			`진입\s*장벽.*높`,
			`독점\s*지위`, `정부\s*인가`,
			`허가\s*취득`, `GMP\s*인증`,
		}),
		antiPatterns: compileAll([]string{
			`진입장벽.*낮`, `규제.*완화`,
			`규제\s*준수\s*비용`,
		}),
	},
	MoatDataLearning: {
		keywords: compileAll([]string{
			`데이터\s*축적.*\d+`, `AI\s*학습`,
			`빅데이터.*분석`, `알고리즘\s*개선`,
			`데이터\s*플랫폼`, `머신러닝.*모델`,
		}),
		antiPatterns: compileAll([]string{
			`데이터\s*보호`, `개인정보`,
		}),
	},
	MoatPatentProcess: {
		keywords: compileAll([]string{
			`특허.*\d+건`, `특허\s*등록\s*\d+`,
			`고유\s*기술.*보유`, `독자\s*공정`,
			`핵심\s*기술\s*(?:보유|개발)`,
			`R&D.*매출.*\d+%`,
		}),
		antiPatterns: compileAll([]string{
			`특허\s*만료`, `특허\s*분쟁`,
		}),
	},
	MoatSupplyChain: {
		keywords: compileAll([]string{
			`공급망\s*구축`, `설치\s*기반.*\d+`,
			`유통\s*네트워크.*\d+`, `물류\s*인프라`,
			`거래처\s*\d+`, `납품\s*실적.*\d+`,
		}),
		antiPatterns: compileAll([]string{
			`공급\s*과잉`, `공급\s*불안`,
		}),
	},
	MoatLockInStandard: {
		keywords: compileAll([]string{
			`표준\s*채택`, `생태계\s*(?:구축|확장)`,
			`API\s*통합`, `종속\s*효과`,
			`업계\s*표준`, `사실상\s*표준`,
		}),
		antiPatterns: compileAll([]string{
			`호환성\s*(?:문제|이슈)`,
		}),
	},
	MoatCostAdvantage: {
		keywords: compileAll([]string{
			`원가\s*우위`, `원가\s*경쟁력.*(?:보유|확보)`,
			`생산\s*효율.*\d+`, `수직\s*계열화`,
			`영업이익률\s*\d+%`,
		}),
		antiPatterns: compileAll([]string{
			`원가.*부담`, `비용.*증가`,
			`영업이익률\s*-`, `영업\s*손실`,
		}),
	},
}

// Quality markers.
var (
	numericMarkerRe = regexp.MustCompile(`\d+[%조억만건개사]`)
	comparativeRe   = regexp.MustCompile(`(?:점유율|선두|No\.?\s*1|최[대고]|유일|독점|과점|경쟁.*우위|업계.*1위)`)
	hangulRe        = regexp.MustCompile(`[가-힣]`)
)

// sectionSourceMap maps section keys to human-readable source labels.
var sectionSourceMap = map[string]string{
	"business_overview": "사업보고서 - 사업의 내용",
	"major_products":    "사업보고서 - 주요 제품",
	"competition":       "사업보고서 - 경쟁 상황",
	"rnd":               "사업보고서 - 연구개발",
	"risk_factors":      "사업보고서 - 위험 요인",
	"facilities":        "사업보고서 - 생산설비",
	"major_customers":   "사업보고서 - 주요 고객",
}
