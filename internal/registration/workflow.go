package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"guardian-relay/internal/dispatch"
	"guardian-relay/internal/messenger"
	"guardian-relay/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RegisterUsage /cadastrar 的参数格式
const RegisterUsage = "/cadastrar <UserID>;<Nome>;<Função>;<Escola>;<Telefone>;<Email>;<Endereço>;<Localização>"

// registerFieldCount 结构化注册必须提供的字段数
const registerFieldCount = 8

const notifyTimeout = 5 * time.Second

const (
	textRequestAck      = "📌 Sua solicitação foi enviada para análise."
	textAlreadyPending  = "📌 Sua solicitação já está em análise. Aguarde o retorno da equipe."
	textAlreadyApproved = "✅ Seu cadastro já foi aprovado. Aguarde a conclusão pela equipe."
	textAlreadyUnit     = "✅ Esta instituição já está cadastrada no Guardião Escolar."
	textApproved        = "✅ Sua solicitação de cadastro foi aprovada! A equipe concluirá o cadastro em breve."
	textRejected        = "❌ Sua solicitação de cadastro foi rejeitada."
)

// Directory 注册流程依赖的目录操作（由 directory.Cache 实现）
type Directory interface {
	LookupUnit(unitID string) (models.UnitRecord, error)
	IsAdministrator(id string) bool
	Administrators() []string
	CreateUnit(ctx context.Context, rec models.UnitRecord) error
}

// Workflow 注册状态机：NONE -> PENDING -> {APPROVED, REJECTED}
type Workflow struct {
	directory Directory
	pending   PendingStore
	messenger messenger.Messenger
	logger    *zap.Logger
	now       func() time.Time
}

func NewWorkflow(dir Directory, pending PendingStore, m messenger.Messenger, logger *zap.Logger) *Workflow {
	return &Workflow{
		directory: dir,
		pending:   pending,
		messenger: m,
		logger:    logger,
		now:       time.Now,
	}
}

// State 查询发送者当前的注册状态
func (w *Workflow) State(ctx context.Context, senderID string) (models.RegistrationState, error) {
	if _, err := w.pending.Get(ctx, senderID); err == nil {
		return models.RegistrationPending, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return models.RegistrationNone, err
	}
	res, err := w.pending.Resolution(ctx, senderID)
	if errors.Is(err, models.ErrNotFound) {
		return models.RegistrationNone, nil
	}
	if err != nil {
		return models.RegistrationNone, err
	}
	// 已完成注册但学校随后被移除：允许重新申请
	if res.Registered {
		if _, err := w.directory.LookupUnit(senderID); errors.Is(err, models.ErrNotFound) {
			return models.RegistrationNone, nil
		}
	}
	return res.State, nil
}

// RequestRegistration 未注册的发送者请求注册
// 创建待审批请求并通知所有管理员；无论结果如何都会回复发送者
func (w *Workflow) RequestRegistration(ctx context.Context, senderID, displayName, phone string) (models.RegistrationState, error) {
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return models.RegistrationNone, fmt.Errorf("empty sender id: %w", models.ErrMalformedInput)
	}

	if _, err := w.directory.LookupUnit(senderID); err == nil {
		w.reply(ctx, senderID, textAlreadyUnit)
		return models.RegistrationApproved, nil
	}

	state, err := w.State(ctx, senderID)
	if err != nil {
		return models.RegistrationNone, err
	}
	if state == models.RegistrationApproved {
		w.reply(ctx, senderID, textAlreadyApproved)
		return state, nil
	}

	p := models.PendingRegistration{
		SenderID:     senderID,
		DisplayName:  strings.TrimSpace(displayName),
		ContactPhone: strings.TrimSpace(phone),
		RequestedAt:  w.now(),
	}
	created, err := w.pending.Add(ctx, p)
	if err != nil {
		return models.RegistrationNone, err
	}
	if !created {
		w.reply(ctx, senderID, textAlreadyPending)
		return models.RegistrationPending, nil
	}
	// RegisterUnit 可能在 LookupUnit 与 Add 之间完成
	if _, err := w.directory.LookupUnit(senderID); err == nil {
		w.closeForExistingUnit(ctx, senderID)
		w.reply(ctx, senderID, textAlreadyUnit)
		return models.RegistrationApproved, nil
	}

	w.logger.Info("Registration requested",
		zap.String("sender_id", senderID),
		zap.String("display_name", p.DisplayName),
	)

	failed := w.notifyAdministrators(ctx, FormatRequest(p))
	if failed > 0 {
		w.logger.Warn("Some administrators were not notified of registration request",
			zap.String("sender_id", senderID),
			zap.Int("failed", failed),
		)
	}
	w.reply(ctx, senderID, textRequestAck)
	return models.RegistrationPending, nil
}

// Decide 管理员对待审批请求做出决定
// 批准只解锁后续的 /cadastrar，不会创建学校
func (w *Workflow) Decide(ctx context.Context, adminID, senderID string, decision models.Decision) (models.Resolution, error) {
	if !w.directory.IsAdministrator(adminID) {
		return models.Resolution{}, fmt.Errorf("decide on %s by %s: %w", senderID, adminID, models.ErrUnauthorized)
	}
	senderID = strings.TrimSpace(senderID)

	var state models.RegistrationState
	switch decision {
	case models.DecisionApprove:
		state = models.RegistrationApproved
	case models.DecisionReject:
		state = models.RegistrationRejected
	default:
		return models.Resolution{}, fmt.Errorf("unknown decision %q: %w", decision, models.ErrMalformedInput)
	}

	res, err := w.pending.Resolve(ctx, senderID, state, adminID, w.now())
	if err != nil {
		return models.Resolution{}, err
	}

	w.logger.Info("Registration decided",
		zap.String("sender_id", senderID),
		zap.String("admin_id", adminID),
		zap.String("state", string(state)),
	)

	if state == models.RegistrationApproved {
		w.reply(ctx, senderID, textApproved)
	} else {
		w.reply(ctx, senderID, textRejected)
	}
	return res, nil
}

// RegisterUnit 管理员提交 8 个以分号分隔的字段，写入存储并合并进目录
func (w *Workflow) RegisterUnit(ctx context.Context, requesterID, payload string) (models.UnitRecord, error) {
	if !w.directory.IsAdministrator(requesterID) {
		return models.UnitRecord{}, fmt.Errorf("register unit by %s: %w", requesterID, models.ErrUnauthorized)
	}

	rec, err := ParseUnit(payload)
	if err != nil {
		return models.UnitRecord{}, err
	}
	if _, err := w.directory.LookupUnit(rec.UnitID); err == nil {
		return models.UnitRecord{}, fmt.Errorf("unit %s: %w", rec.UnitID, models.ErrDuplicateUnit)
	}
	if err := w.directory.CreateUnit(ctx, rec); err != nil {
		return models.UnitRecord{}, err
	}

	// 同一 ID 不能既是学校又在待审批集合中
	if _, err := w.pending.Resolve(ctx, rec.UnitID, models.RegistrationApproved, requesterID, w.now()); err != nil && !errors.Is(err, models.ErrAlreadyProcessed) {
		w.logger.Warn("Failed to close pending registration for new unit",
			zap.String("unit_id", rec.UnitID),
			zap.Error(err),
		)
	}
	if err := w.pending.MarkRegistered(ctx, rec.UnitID); err != nil {
		w.logger.Warn("Failed to mark registration as completed",
			zap.String("unit_id", rec.UnitID),
			zap.Error(err),
		)
	}

	w.logger.Info("Unit registered",
		zap.String("unit_id", rec.UnitID),
		zap.String("unit_name", rec.UnitName),
		zap.String("admin_id", requesterID),
	)
	return rec, nil
}

// closeForExistingUnit 关闭一个已经对应学校的待审批请求
func (w *Workflow) closeForExistingUnit(ctx context.Context, senderID string) {
	if _, err := w.pending.Resolve(ctx, senderID, models.RegistrationApproved, senderID, w.now()); err != nil && !errors.Is(err, models.ErrAlreadyProcessed) {
		w.logger.Warn("Failed to close pending registration for existing unit",
			zap.String("sender_id", senderID),
			zap.Error(err),
		)
		return
	}
	if err := w.pending.MarkRegistered(ctx, senderID); err != nil {
		w.logger.Warn("Failed to mark registration as completed",
			zap.String("sender_id", senderID),
			zap.Error(err),
		)
	}
}

// ParseUnit 解析 /cadastrar 的参数：恰好 8 个字段且 User ID 非空
func ParseUnit(payload string) (models.UnitRecord, error) {
	fields := strings.Split(payload, ";")
	if len(fields) != registerFieldCount {
		return models.UnitRecord{}, fmt.Errorf("expected %d fields, got %d (usage: %s): %w",
			registerFieldCount, len(fields), RegisterUsage, models.ErrMalformedInput)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if fields[0] == "" {
		return models.UnitRecord{}, fmt.Errorf("empty User ID (usage: %s): %w", RegisterUsage, models.ErrMalformedInput)
	}
	return models.UnitRecord{
		UnitID:       fields[0],
		ContactName:  fields[1],
		Role:         fields[2],
		UnitName:     fields[3],
		Phone:        fields[4],
		Email:        fields[5],
		Address:      fields[6],
		LocationLink: fields[7],
	}, nil
}

// FormatRequest 通知管理员的注册请求摘要，附带批准所需的命令格式
func FormatRequest(p models.PendingRegistration) string {
	return fmt.Sprintf(
		"👤 *Novo pedido de cadastro*\n"+
			"📌 *ID*: %s\n"+
			"👤 *Nome*: %s\n"+
			"📞 *Telefone*: %s\n\n"+
			"Para aprovar ou rejeitar: `/aprovar %s` ou `/rejeitar %s`\n"+
			"Para concluir o cadastro, utilize o comando:\n"+
			"`/cadastrar %s;<Nome>;<Função>;<Escola>;<Telefone>;<Email>;<Endereço>;<Localização>`",
		p.SenderID,
		dispatch.EscapeMarkdown(models.OrPlaceholder(p.DisplayName)),
		dispatch.EscapeMarkdown(models.OrPlaceholder(p.ContactPhone)),
		p.SenderID, p.SenderID,
		p.SenderID,
	)
}

// notifyAdministrators 并发通知所有管理员，返回失败数
func (w *Workflow) notifyAdministrators(ctx context.Context, text string) int {
	admins := w.directory.Administrators()
	results := make([]error, len(admins))

	var g errgroup.Group
	for i, adminID := range admins {
		i, adminID := i, adminID
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
			defer cancel()
			results[i] = w.messenger.SendText(sendCtx, adminID, text)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, err := range results {
		if err != nil {
			failed++
			w.logger.Error("Failed to notify administrator",
				zap.String("admin_id", admins[i]),
				zap.Error(err),
			)
		}
	}
	return failed
}

func (w *Workflow) reply(ctx context.Context, recipientID, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := w.messenger.SendText(sendCtx, recipientID, text); err != nil {
		w.logger.Warn("Failed to reply",
			zap.String("recipient_id", recipientID),
			zap.Error(err),
		)
	}
}
