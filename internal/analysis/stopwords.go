package analysis

// DefaultStopwords is the base filter list applied to every tokenization and
// word-frequency request. Request-level stopwords extend it, never replace it.
var DefaultStopwords = []string{
	"的", "了", "和", "是", "在", "我", "有", "他", "这", "中", "大",
	"来", "上", "国", "个", "到", "说", "们", "为", "子", "与", "也",
	"就", "不", "人", "都", "一", "一个", "没有", "我们", "你们", "他们",
	"吗", "吧", "啊", "呢", "着", "把", "被", "让", "给", "对", "而",
}

// stopwordSet builds the effective filter for one request.
func stopwordSet(extra []string) map[string]struct{} {
	set := make(map[string]struct{}, len(DefaultStopwords)+len(extra))
	for _, w := range DefaultStopwords {
		set[w] = struct{}{}
	}
	for _, w := range extra {
		set[w] = struct{}{}
	}
	return set
}
