package router

import (
	"strings"

	"guardian-relay/internal/models"
)

// 命令名（不含斜杠，小写）
const (
	CommandStart       = "start"
	CommandHelp        = "ajuda"
	CommandRegister    = "cadastrar"
	CommandApprove     = "aprovar"
	CommandReject      = "rejeitar"
	CommandAddAdmin    = "addadmin"
	CommandRemoveAdmin = "removeadmin"
	CommandListUnits   = "listarescolas"
	CommandUpdate      = "atualizar"
	CommandRemove      = "remover"
)

// ParseCommand 把 "/nome@bot args" 形式的文本解析为命令；不是命令时返回 false
func ParseCommand(sender models.Sender, text string) (models.Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return models.Command{}, false
	}

	head, args, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	if head == "" {
		return models.Command{}, false
	}
	return models.Command{
		Sender: sender,
		Name:   strings.ToLower(head),
		Args:   strings.TrimSpace(args),
	}, true
}
