package dispatch

import (
	"fmt"
	"strings"

	"guardian-relay/internal/models"
)

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// EscapeMarkdown 转义 Telegram Markdown 的保留字符，用于嵌入用户提供的文本
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func field(v string) string {
	return EscapeMarkdown(models.OrPlaceholder(strings.TrimSpace(v)))
}

// FormatAlert 生成发给管理员的告警文本；缺失字段显示为“Não informado”
func FormatAlert(unit models.UnitRecord, category models.EmergencyCategory, rawDetails string, sender models.Sender) string {
	username := "Sem username"
	if sender.Username != "" {
		username = "@" + sender.Username
	}

	var b strings.Builder
	b.WriteString("🚨 *ALERTA DE EMERGÊNCIA*\n\n")
	fmt.Fprintf(&b, "⚠️ *Tipo*: %s\n", category.Label())
	fmt.Fprintf(&b, "🆔 *Código da Escola*: %s\n", field(unit.UnitID))
	fmt.Fprintf(&b, "🏫 *Escola*: %s\n", field(unit.UnitName))
	fmt.Fprintf(&b, "👤 *Servidor*: %s\n", field(unit.ContactName))
	fmt.Fprintf(&b, "👤 *Função*: %s\n", field(unit.Role))
	fmt.Fprintf(&b, "📞 *Telefone*: %s\n", field(unit.Phone))
	fmt.Fprintf(&b, "✉️ *Email*: %s\n", field(unit.Email))
	fmt.Fprintf(&b, "📍 *Endereço*: %s\n", field(unit.Address))
	fmt.Fprintf(&b, "🌐 *Localização*: %s\n\n", field(unit.LocationLink))
	fmt.Fprintf(&b, "📩 *Mensagem original*: %s\n", field(rawDetails))
	fmt.Fprintf(&b, "👤 *Usuário*: %s (Nome: %s, User ID: %s)",
		EscapeMarkdown(username),
		field(sender.DisplayName),
		field(sender.ID),
	)
	return b.String()
}
