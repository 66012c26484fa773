package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"guardian-relay/internal/classifier"
	"guardian-relay/internal/directory"
	"guardian-relay/internal/dispatch"
	"guardian-relay/internal/messenger"
	"guardian-relay/internal/models"
	"guardian-relay/internal/registration"

	"go.uber.org/zap"
)

const replyTimeout = 5 * time.Second

// Directory 路由所需的目录操作（由 directory.Cache 实现）
type Directory interface {
	LookupUnit(unitID string) (models.UnitRecord, error)
	IsAdministrator(id string) bool
	Units() []models.UnitRecord
	AddAdministrator(ctx context.Context, id string) (bool, error)
	RemoveAdministrator(ctx context.Context, id string) error
	UpdateUnitField(ctx context.Context, unitID, column, value string) (string, error)
	RemoveUnit(ctx context.Context, unitID string) error
}

// Dispatcher 告警分发（由 dispatch.Engine 实现）
type Dispatcher interface {
	DispatchAlert(ctx context.Context, unit models.UnitRecord, category models.EmergencyCategory, rawDetails string, sender models.Sender) *dispatch.Report
}

// Registrar 注册流程（由 registration.Workflow 实现）
type Registrar interface {
	RequestRegistration(ctx context.Context, senderID, displayName, phone string) (models.RegistrationState, error)
	Decide(ctx context.Context, adminID, senderID string, decision models.Decision) (models.Resolution, error)
	RegisterUnit(ctx context.Context, requesterID, payload string) (models.UnitRecord, error)
}

// Router 入站消息路由：查目录、分类、分发或进入注册流程
type Router struct {
	directory  Directory
	classifier *classifier.Classifier
	dispatcher Dispatcher
	registrar  Registrar
	messenger  messenger.Messenger
	logger     *zap.Logger
}

func NewRouter(
	dir Directory,
	cls *classifier.Classifier,
	dispatcher Dispatcher,
	registrar Registrar,
	m messenger.Messenger,
	logger *zap.Logger,
) *Router {
	return &Router{
		directory:  dir,
		classifier: cls,
		dispatcher: dispatcher,
		registrar:  registrar,
		messenger:  m,
		logger:     logger,
	}
}

// Route 按文本形式分发到 HandleCommand 或 HandleMessage
func (r *Router) Route(ctx context.Context, msg models.InboundMessage) error {
	if cmd, ok := ParseCommand(msg.Sender, msg.Text); ok {
		return r.HandleCommand(ctx, cmd)
	}
	return r.HandleMessage(ctx, msg)
}

// HandleMessage 处理普通文本消息
// 只有未分类的错误会返回，调用方已收到通用失败回复
func (r *Router) HandleMessage(ctx context.Context, msg models.InboundMessage) error {
	senderID := strings.TrimSpace(msg.Sender.ID)
	text := strings.TrimSpace(msg.Text)

	unit, err := r.directory.LookupUnit(senderID)
	if errors.Is(err, models.ErrNotFound) {
		return r.handleUnknownSender(ctx, msg.Sender, text)
	}
	if err != nil {
		return r.fail(ctx, senderID, "lookup unit", err)
	}

	category, keyword, ok := r.classifier.ClassifyText(text)
	if !ok {
		r.reply(ctx, senderID, textGuidance)
		return nil
	}

	r.logger.Info("Emergency keyword detected",
		zap.String("unit_id", unit.UnitID),
		zap.String("keyword", keyword),
		zap.String("category", string(category)),
	)

	// 确认先于分发发送，发送者不等待管理员投递
	r.reply(ctx, senderID, textAlertAck)
	report := r.dispatcher.DispatchAlert(ctx, unit, category, text, msg.Sender)
	if failures := report.Failures(); len(failures) > 0 {
		r.logger.Warn("Alert partially delivered",
			zap.String("dispatch_id", report.DispatchID),
			zap.Int("delivered", report.Delivered()),
			zap.Int("failed", len(failures)),
		)
	}
	return nil
}

func (r *Router) handleUnknownSender(ctx context.Context, sender models.Sender, text string) error {
	if !classifier.IsRegistrationRequest(text) {
		r.reply(ctx, sender.ID, textExclusiveChannel)
		return nil
	}
	if _, err := r.registrar.RequestRegistration(ctx, sender.ID, sender.DisplayName, sender.Phone); err != nil {
		return r.translate(ctx, sender.ID, "request registration", err, "")
	}
	return nil
}

// HandleCommand 处理斜杠命令
func (r *Router) HandleCommand(ctx context.Context, cmd models.Command) error {
	senderID := strings.TrimSpace(cmd.Sender.ID)

	switch strings.ToLower(strings.TrimPrefix(cmd.Name, "/")) {
	case CommandStart:
		r.reply(ctx, senderID, textWelcome)
	case CommandHelp:
		r.reply(ctx, senderID, textHelp)
	case CommandRegister:
		return r.handleRegister(ctx, senderID, cmd.Args)
	case CommandApprove:
		return r.handleDecide(ctx, senderID, cmd.Args, models.DecisionApprove)
	case CommandReject:
		return r.handleDecide(ctx, senderID, cmd.Args, models.DecisionReject)
	case CommandAddAdmin:
		return r.handleAddAdmin(ctx, senderID, cmd.Args)
	case CommandRemoveAdmin:
		return r.handleRemoveAdmin(ctx, senderID, cmd.Args)
	case CommandListUnits:
		return r.handleListUnits(ctx, senderID)
	case CommandUpdate:
		return r.handleUpdate(ctx, senderID, cmd.Args)
	case CommandRemove:
		return r.handleRemove(ctx, senderID, cmd.Args)
	default:
		r.reply(ctx, senderID, textUnknownCommand)
	}
	return nil
}

func (r *Router) handleRegister(ctx context.Context, senderID, args string) error {
	rec, err := r.registrar.RegisterUnit(ctx, senderID, args)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			r.reply(ctx, senderID, textAdminsOnlyUnits)
			return nil
		}
		return r.translate(ctx, senderID, "register unit", err, registration.RegisterUsage)
	}
	r.reply(ctx, senderID, fmt.Sprintf("✅ *Usuário %s cadastrado com sucesso!*",
		dispatch.EscapeMarkdown(models.OrPlaceholder(rec.ContactName))))
	return nil
}

func (r *Router) handleDecide(ctx context.Context, adminID, args string, decision models.Decision) error {
	target := strings.TrimSpace(args)
	if target == "" {
		r.reply(ctx, adminID, fmt.Sprintf(textInvalidFormat, usageDecide))
		return nil
	}

	res, err := r.registrar.Decide(ctx, adminID, target, decision)
	if err != nil {
		return r.translate(ctx, adminID, "decide registration", err, usageDecide)
	}

	name := dispatch.EscapeMarkdown(models.OrPlaceholder(res.DisplayName))
	if decision == models.DecisionApprove {
		r.reply(ctx, adminID, fmt.Sprintf("✅ *Usuário %s aprovado!* Agora, envie os dados adicionais no formato:\n\n`%s`",
			name, registration.RegisterUsage))
	} else {
		r.reply(ctx, adminID, fmt.Sprintf("❌ *Usuário %s foi rejeitado e não será cadastrado.*", name))
	}
	return nil
}

func (r *Router) handleAddAdmin(ctx context.Context, senderID, args string) error {
	if !r.directory.IsAdministrator(senderID) {
		r.reply(ctx, senderID, textUnauthorized)
		return nil
	}
	id := strings.TrimSpace(args)
	if id == "" {
		r.reply(ctx, senderID, fmt.Sprintf(textInvalidFormat, usageAdmin))
		return nil
	}

	added, err := r.directory.AddAdministrator(ctx, id)
	if err != nil {
		return r.translate(ctx, senderID, "add administrator", err, usageAdmin)
	}
	if !added {
		r.reply(ctx, senderID, fmt.Sprintf("ℹ️ %s já é administrador.", dispatch.EscapeMarkdown(id)))
		return nil
	}
	r.logger.Info("Administrator added", zap.String("admin_id", id), zap.String("by", senderID))
	r.reply(ctx, senderID, fmt.Sprintf("✅ Administrador %s adicionado.", dispatch.EscapeMarkdown(id)))
	return nil
}

func (r *Router) handleRemoveAdmin(ctx context.Context, senderID, args string) error {
	if !r.directory.IsAdministrator(senderID) {
		r.reply(ctx, senderID, textUnauthorized)
		return nil
	}
	id := strings.TrimSpace(args)
	if id == "" {
		r.reply(ctx, senderID, fmt.Sprintf(textInvalidFormat, usageAdmin))
		return nil
	}

	if err := r.directory.RemoveAdministrator(ctx, id); err != nil {
		return r.translate(ctx, senderID, "remove administrator", err, usageAdmin)
	}
	r.logger.Info("Administrator removed", zap.String("admin_id", id), zap.String("by", senderID))
	r.reply(ctx, senderID, fmt.Sprintf("✅ Administrador %s removido.", dispatch.EscapeMarkdown(id)))
	return nil
}

func (r *Router) handleListUnits(ctx context.Context, senderID string) error {
	if !r.directory.IsAdministrator(senderID) {
		r.reply(ctx, senderID, textAdminsOnlyList)
		return nil
	}
	r.reply(ctx, senderID, FormatUnitList(r.directory.Units()))
	return nil
}

func (r *Router) handleUpdate(ctx context.Context, senderID, args string) error {
	if !r.directory.IsAdministrator(senderID) {
		r.reply(ctx, senderID, textUnauthorized)
		return nil
	}
	parts := strings.SplitN(args, ";", 3)
	if len(parts) != 3 || strings.TrimSpace(parts[0]) == "" {
		r.reply(ctx, senderID, fmt.Sprintf(textInvalidFormat, usageUpdate))
		return nil
	}
	unitID, column, value := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])

	if _, ok := directory.CanonicalColumn(column); !ok {
		r.reply(ctx, senderID, textColumnNotFound)
		return nil
	}
	canonical, err := r.directory.UpdateUnitField(ctx, unitID, column, value)
	if err != nil {
		return r.translate(ctx, senderID, "update unit", err, usageUpdate)
	}
	r.reply(ctx, senderID, fmt.Sprintf("✅ %s atualizado para %s.",
		dispatch.EscapeMarkdown(canonical), dispatch.EscapeMarkdown(value)))
	return nil
}

func (r *Router) handleRemove(ctx context.Context, senderID, args string) error {
	if !r.directory.IsAdministrator(senderID) {
		r.reply(ctx, senderID, textUnauthorized)
		return nil
	}
	unitID := strings.TrimSpace(args)
	if unitID == "" {
		r.reply(ctx, senderID, fmt.Sprintf(textInvalidFormat, usageRemove))
		return nil
	}

	if err := r.directory.RemoveUnit(ctx, unitID); err != nil {
		return r.translate(ctx, senderID, "remove unit", err, usageRemove)
	}
	r.logger.Info("Unit removed", zap.String("unit_id", unitID), zap.String("by", senderID))
	r.reply(ctx, senderID, fmt.Sprintf("✅ Escola com User ID %s removida.", dispatch.EscapeMarkdown(unitID)))
	return nil
}

// FormatUnitList /listarescolas 的回复："N. Escola - Nome (Função)"
func FormatUnitList(units []models.UnitRecord) string {
	if len(units) == 0 {
		return textNoUnits
	}
	var b strings.Builder
	b.WriteString("📋 *Escolas cadastradas:*\n")
	for i, u := range units {
		fmt.Fprintf(&b, "\n%d. %s - %s (%s)",
			i+1,
			dispatch.EscapeMarkdown(models.OrPlaceholder(u.UnitName)),
			dispatch.EscapeMarkdown(models.OrPlaceholder(u.ContactName)),
			dispatch.EscapeMarkdown(models.OrPlaceholder(u.Role)),
		)
	}
	return b.String()
}

// translate 把错误分类转换为用户可读的回复；只有未分类错误会返回
func (r *Router) translate(ctx context.Context, senderID, op string, err error, usage string) error {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		r.reply(ctx, senderID, textUnauthorized)
	case errors.Is(err, models.ErrAlreadyProcessed):
		r.reply(ctx, senderID, textAlreadyHandled)
	case errors.Is(err, models.ErrMalformedInput):
		if usage == "" {
			r.reply(ctx, senderID, textGenericFailure)
		} else {
			r.reply(ctx, senderID, fmt.Sprintf(textInvalidFormat, usage))
		}
	case errors.Is(err, models.ErrDuplicateUnit):
		r.reply(ctx, senderID, textDuplicateUnit)
	case errors.Is(err, models.ErrNotFound):
		r.reply(ctx, senderID, textUnitNotFound)
	case errors.Is(err, models.ErrStoreUnavailable):
		r.logger.Warn("Store unavailable",
			zap.String("op", op),
			zap.String("sender_id", senderID),
			zap.Error(err),
		)
		r.reply(ctx, senderID, textStoreFailure)
	default:
		return r.fail(ctx, senderID, op, err)
	}
	return nil
}

func (r *Router) fail(ctx context.Context, senderID, op string, err error) error {
	r.logger.Error("Failed to handle inbound event",
		zap.String("op", op),
		zap.String("sender_id", senderID),
		zap.Error(err),
	)
	r.reply(ctx, senderID, textGenericFailure)
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (r *Router) reply(ctx context.Context, recipientID, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	if err := r.messenger.SendText(sendCtx, recipientID, text); err != nil {
		r.logger.Warn("Failed to reply",
			zap.String("recipient_id", recipientID),
			zap.Error(err),
		)
	}
}
