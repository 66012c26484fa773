package classifier

import (
	"strings"
	"unicode"

	"guardian-relay/internal/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RegistrationKeyword 未登记用户申请注册时发送的关键词
const RegistrationKeyword = "CADASTRO"

// Keyword 关键词及其对应的紧急类别
type Keyword struct {
	Word     string
	Category models.EmergencyCategory
}

// DefaultKeywords 关键词按顺序匹配，第一个命中的决定类别；顺序不可调整
var DefaultKeywords = []Keyword{
	{Word: "AGRESSOR", Category: models.CategoryAggressor},
	{Word: "AGRESSORES", Category: models.CategoryAggressor},
	{Word: "HOMICIDIO", Category: models.CategoryHomicide},
	{Word: "REFEM", Category: models.CategoryHostage},
	{Word: "REFENS", Category: models.CategoryHostage},
	{Word: "BOMBA", Category: models.CategoryExplosive},
	{Word: "BOMBAS", Category: models.CategoryExplosive},
	{Word: "ATAQUE", Category: models.CategoryAggressor},
	{Word: "EXPLOSAO", Category: models.CategoryExplosive},
	{Word: "TESTE", Category: models.CategoryTest},
}

// Classifier 基于子串包含的关键词分类器
type Classifier struct {
	keywords []Keyword
}

// New 创建分类器；关键词本身也会被规范化
func New(keywords []Keyword) *Classifier {
	normalized := make([]Keyword, 0, len(keywords))
	for _, k := range keywords {
		w := Normalize(strings.TrimSpace(k.Word))
		if w == "" {
			continue
		}
		normalized = append(normalized, Keyword{Word: w, Category: k.Category})
	}
	return &Classifier{keywords: normalized}
}

// Default 使用 DefaultKeywords 的分类器
func Default() *Classifier {
	return New(DefaultKeywords)
}

// Classify 对已规范化的文本分类，返回类别与命中的关键词
func (c *Classifier) Classify(normalized string) (models.EmergencyCategory, string, bool) {
	for _, k := range c.keywords {
		if strings.Contains(normalized, k.Word) {
			return k.Category, k.Word, true
		}
	}
	return "", "", false
}

// ClassifyText 先规范化再分类
func (c *Classifier) ClassifyText(text string) (models.EmergencyCategory, string, bool) {
	return c.Classify(Normalize(text))
}

// Normalize 去除重音并转为大写："ameaça" -> "AMEACA"
func Normalize(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return strings.ToUpper(out)
}

// IsRegistrationRequest 消息是否为注册申请（整条消息等于 CADASTRO）
func IsRegistrationRequest(text string) bool {
	return Normalize(strings.TrimSpace(text)) == RegistrationKeyword
}
