package processor

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"mailer-server/internal/blob"
	"mailer-server/internal/clients/mail"
	"mailer-server/internal/config"
	"mailer-server/internal/observability"
	"mailer-server/internal/store"
	"mailer-server/internal/templates"

	"github.com/google/uuid"
)

var (
	// ErrIllegalState is returned when an operation finds the message in a
	// status it cannot proceed from.
	ErrIllegalState = errors.New("illegal message state")
	// ErrToEmailRequired is returned when a message is created without a recipient
	ErrToEmailRequired = errors.New("to email is required")
	// ErrReplyToInvalid is returned when a reply-to name is set without a reply-to email
	ErrReplyToInvalid = errors.New("reply-to name requires a reply-to email")
	// ErrMimeMismatch is returned when an attachment's declared MIME type
	// disagrees with its filename extension.
	ErrMimeMismatch = errors.New("mime type does not match filename extension")
)

// DisableOutboundEmailSlug is the global kill-switch checked on every send
const DisableOutboundEmailSlug = "disable_outbound_email"

// Cooldown scopes selecting which fields form the duplicate-send fingerprint
const (
	ScopeCreatedBy      = "created_by"
	ScopeTemplatePrefix = "template_prefix"
	ScopeTo             = "to"
)

// Reserved template context keys merged in during prepare
const (
	contextKeySubject             = "subject"
	contextKeySiteName            = "site_name"
	contextKeyCompany             = "company"
	contextKeyCompanyAddress      = "company_address"
	contextKeyCompanyCityStateZip = "company_city_state_zip"
	contextKeyLogoURL             = "logo_url"
	contextKeyLogoURLLink         = "logo_url_link"
	contextKeyContactEmail        = "contact_email"
)

// EmailProcessor drives the create/prepare/attach/queue/send lifecycle of
// outbound email messages.
type EmailProcessor struct {
	store      EmailStore
	blobs      BlobStore
	renderer   templates.Renderer
	provider   Provider
	dispatcher Dispatcher
	settings   SettingsReader
	mailConfig config.MailConfig
	siteConfig config.SiteConfig
	logger     *observability.Logger
}

// New creates a new EmailProcessor
func New(
	store EmailStore,
	blobs BlobStore,
	renderer templates.Renderer,
	provider Provider,
	dispatcher Dispatcher,
	settings SettingsReader,
	mailConfig config.MailConfig,
	siteConfig config.SiteConfig,
	logger *observability.Logger,
) *EmailProcessor {
	return &EmailProcessor{
		store:      store,
		blobs:      blobs,
		renderer:   renderer,
		provider:   provider,
		dispatcher: dispatcher,
		settings:   settings,
		mailConfig: mailConfig,
		siteConfig: siteConfig,
		logger:     logger,
	}
}

// CreateParams carries the caller-supplied fields of a new message
type CreateParams struct {
	SenderName      string
	SenderEmail     string
	ToName          string
	ToEmail         string
	ReplyToName     string
	ReplyToEmail    string
	Subject         string
	TemplatePrefix  string
	TemplateContext map[string]interface{}
	MessageStream   string
	CreatedByID     *uuid.UUID
	OrgID           *uuid.UUID
}

// Create validates and persists a new message in status NEW
func (p *EmailProcessor) Create(ctx context.Context, params CreateParams) (store.EmailMessage, error) {
	if strings.TrimSpace(params.ToEmail) == "" {
		return store.EmailMessage{}, ErrToEmailRequired
	}
	if (params.ReplyToName == "") != (params.ReplyToEmail == "") {
		return store.EmailMessage{}, ErrReplyToInvalid
	}

	templateContext := store.JSONB{}
	for k, v := range params.TemplateContext {
		templateContext[k] = v
	}

	message, err := p.store.CreateEmailMessage(ctx, store.CreateEmailMessageParams{
		SenderName:      params.SenderName,
		SenderEmail:     params.SenderEmail,
		ToName:          params.ToName,
		ToEmail:         params.ToEmail,
		ReplyToName:     params.ReplyToName,
		ReplyToEmail:    params.ReplyToEmail,
		Subject:         params.Subject,
		TemplatePrefix:  params.TemplatePrefix,
		TemplateContext: templateContext,
		MessageStream:   params.MessageStream,
		CreatedByID:     params.CreatedByID,
		OrgID:           params.OrgID,
	})
	if err != nil {
		return store.EmailMessage{}, err
	}
	return message, nil
}

// Prepare normalizes and defaults the addressing fields, merges the site-wide
// template context keys, resolves the subject, and transitions NEW -> READY.
func (p *EmailProcessor) Prepare(ctx context.Context, messageID uuid.UUID) (store.EmailMessage, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_message_id", Value: messageID.String()},
	)

	message, err := p.store.GetEmailMessageByID(ctx, messageID)
	if err != nil {
		return store.EmailMessage{}, err
	}
	if message.Status != store.EmailMessageStatusNew {
		return store.EmailMessage{}, fmt.Errorf("prepare requires status NEW, got %s: %w", message.Status, ErrIllegalState)
	}

	params := store.MarkEmailMessageReadyParams{
		SenderName:    normalizeWhitespace(message.SenderName),
		SenderEmail:   normalizeWhitespace(message.SenderEmail),
		ToName:        normalizeWhitespace(message.ToName),
		ToEmail:       normalizeWhitespace(message.ToEmail),
		ReplyToName:   normalizeWhitespace(message.ReplyToName),
		ReplyToEmail:  normalizeWhitespace(message.ReplyToEmail),
		Subject:       normalizeWhitespace(message.Subject),
		MessageStream: message.MessageStream,
	}

	if params.SenderEmail == "" {
		params.SenderEmail = p.mailConfig.DefaultFromEmail
	}
	if params.SenderName == "" {
		params.SenderName = p.mailConfig.DefaultFromName
	}
	if params.ReplyToEmail == "" {
		params.ReplyToEmail = p.mailConfig.DefaultReplyToEmail
	}
	if params.ReplyToName == "" {
		params.ReplyToName = p.mailConfig.DefaultReplyToName
	}
	if params.MessageStream == "" {
		params.MessageStream = p.mailConfig.DefaultMessageStream
	}

	if params.ReplyToName != "" && params.ReplyToEmail == "" {
		if _, markErr := p.store.MarkEmailMessageError(ctx, messageID, store.EmailMessageStatusNew, ErrReplyToInvalid.Error()); markErr != nil {
			p.logger.Error(ctx, "failed to mark message error after reply-to validation", markErr)
		}
		return store.EmailMessage{}, ErrReplyToInvalid
	}

	templateContext := store.JSONB{}
	for k, v := range message.TemplateContext {
		templateContext[k] = v
	}
	mergeMissing(templateContext, store.JSONB{
		contextKeySiteName:            p.siteConfig.Name,
		contextKeyCompany:             p.siteConfig.Company,
		contextKeyCompanyAddress:      p.siteConfig.CompanyAddress,
		contextKeyCompanyCityStateZip: p.siteConfig.CompanyCityStateZip,
		contextKeyLogoURL:             p.siteConfig.LogoURL,
		contextKeyLogoURLLink:         p.siteConfig.LogoURLLink,
		contextKeyContactEmail:        p.siteConfig.ContactEmail,
	})

	subject := params.Subject
	if subject == "" {
		rendered, renderErr := p.renderer.Render(ctx, message.TemplatePrefix, templates.SuffixSubject, templateContext)
		if renderErr != nil {
			p.logger.Error(ctx, "failed to render subject template", renderErr)
			if _, markErr := p.store.MarkEmailMessageError(ctx, messageID, store.EmailMessageStatusNew, renderErr.Error()); markErr != nil {
				p.logger.Error(ctx, "failed to mark message error after subject render", markErr)
			}
			return store.EmailMessage{}, renderErr
		}
		subject = normalizeWhitespace(rendered)
	}
	subject = truncateSubject(subject, p.mailConfig.MaxSubjectLength)
	params.Subject = subject
	templateContext[contextKeySubject] = subject
	params.TemplateContext = templateContext

	message, err = p.store.MarkEmailMessageReady(ctx, messageID, params)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return store.EmailMessage{}, ErrIllegalState
		}
		return store.EmailMessage{}, err
	}

	p.logger.Info(ctx, "email message prepared")
	return message, nil
}

// Attach validates and stores an attachment for a READY message
func (p *EmailProcessor) Attach(ctx context.Context, messageID uuid.UUID, filename, mimeType string, content []byte) (store.EmailMessageAttachment, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_message_id", Value: messageID.String()},
		observability.Field{Key: "attachment_filename", Value: filename},
	)

	message, err := p.store.GetEmailMessageByID(ctx, messageID)
	if err != nil {
		return store.EmailMessageAttachment{}, err
	}
	if message.Status != store.EmailMessageStatusReady {
		return store.EmailMessageAttachment{}, fmt.Errorf("attach requires status READY, got %s: %w", message.Status, ErrIllegalState)
	}

	ext, err := extensionForMimeType(filename, mimeType)
	if err != nil {
		return store.EmailMessageAttachment{}, err
	}

	key := blob.NewKey(ext)
	if err := p.blobs.Put(ctx, key, content); err != nil {
		return store.EmailMessageAttachment{}, err
	}

	attachment, err := p.store.CreateEmailMessageAttachment(ctx, store.CreateEmailMessageAttachmentParams{
		EmailMessageID: messageID,
		Filename:       filename,
		MimeType:       mimeType,
		BlobKey:        key,
	})
	if err != nil {
		return store.EmailMessageAttachment{}, err
	}

	p.logger.Info(ctx, "attachment stored")
	return attachment, nil
}

// QueueParams tunes the cooldown check. Zero values fall back to the
// configured defaults; a non-nil empty Scopes slice counts every recent send
// system-wide.
type QueueParams struct {
	PeriodSeconds int
	Allowed       int
	Scopes        []string
}

// Queue runs the cooldown check and either cancels the message or dispatches
// a send job. Returns true when the send was dispatched. A message still in
// NEW is prepared first.
func (p *EmailProcessor) Queue(ctx context.Context, messageID uuid.UUID, params QueueParams) (bool, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_message_id", Value: messageID.String()},
	)

	message, err := p.store.GetEmailMessageByID(ctx, messageID)
	if err != nil {
		return false, err
	}
	if message.Status == store.EmailMessageStatusNew {
		message, err = p.Prepare(ctx, messageID)
		if err != nil {
			return false, err
		}
	}
	if message.Status != store.EmailMessageStatusReady {
		return false, fmt.Errorf("queue requires status READY, got %s: %w", message.Status, ErrIllegalState)
	}

	period := params.PeriodSeconds
	if period == 0 {
		period = p.mailConfig.CooldownPeriodSeconds
	}
	allowed := params.Allowed
	if allowed == 0 {
		allowed = p.mailConfig.CooldownAllowed
	}
	scopes := params.Scopes
	if scopes == nil {
		scopes = []string{ScopeCreatedBy, ScopeTemplatePrefix, ScopeTo}
	}

	countParams := store.CountRecentSentEmailMessagesParams{
		Since: time.Now().Add(-time.Duration(period) * time.Second),
	}
	for _, scope := range scopes {
		switch scope {
		case ScopeCreatedBy:
			countParams.FilterCreatedBy = true
			countParams.CreatedByID = message.CreatedByID
		case ScopeTemplatePrefix:
			countParams.FilterTemplatePrefix = true
			countParams.TemplatePrefix = message.TemplatePrefix
		case ScopeTo:
			countParams.FilterToEmail = true
			countParams.ToEmail = message.ToEmail
		}
	}

	count, err := p.store.CountRecentSentEmailMessages(ctx, countParams)
	if err != nil {
		return false, err
	}
	if count >= allowed {
		if _, err := p.store.MarkEmailMessageCanceled(ctx, messageID, "Cooling down"); err != nil {
			return false, err
		}
		p.logger.Info(ctx, "email message canceled by cooldown")
		return false, nil
	}

	if err := p.dispatcher.DispatchSendEmail(ctx, messageID); err != nil {
		return false, err
	}
	return true, nil
}

// Send transitions READY -> PENDING, renders the body, consults the global
// kill-switch, and hands the message to the provider. Delivery failures are
// recorded on the message and the job completes; there is no automatic retry.
func (p *EmailProcessor) Send(ctx context.Context, messageID uuid.UUID) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_message_id", Value: messageID.String()},
	)

	message, err := p.store.MarkEmailMessagePending(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return fmt.Errorf("send requires status READY: %w", ErrIllegalState)
		}
		return err
	}

	textBody, err := p.renderer.Render(ctx, message.TemplatePrefix, templates.SuffixText, message.TemplateContext)
	if err != nil {
		return p.failSend(ctx, messageID, err)
	}

	htmlBody, err := p.renderer.Render(ctx, message.TemplatePrefix, templates.SuffixHTML, message.TemplateContext)
	if err != nil {
		if !errors.Is(err, templates.ErrTemplateMissing) {
			return p.failSend(ctx, messageID, err)
		}
		p.logger.Info(ctx, "no HTML template; sending text only")
		htmlBody = ""
	}

	disabled, err := p.settings.GetGlobalBool(ctx, DisableOutboundEmailSlug)
	if err != nil {
		return p.failSend(ctx, messageID, err)
	}
	if disabled {
		return p.failSend(ctx, messageID, fmt.Errorf("outbound email disabled by global setting %s", DisableOutboundEmailSlug))
	}

	attachments, err := p.loadAttachments(ctx, messageID)
	if err != nil {
		return p.failSend(ctx, messageID, err)
	}

	providerMessageID, err := p.provider.Deliver(ctx, mail.Message{
		From:          formatAddress(message.SenderName, message.SenderEmail),
		To:            formatAddress(message.ToName, message.ToEmail),
		ReplyTo:       formatAddress(message.ReplyToName, message.ReplyToEmail),
		Subject:       message.Subject,
		TextBody:      textBody,
		HTMLBody:      htmlBody,
		MessageStream: message.MessageStream,
		Attachments:   attachments,
	})
	if err != nil {
		return p.failSend(ctx, messageID, err)
	}

	var providerID *string
	if providerMessageID != "" {
		providerID = &providerMessageID
	}
	if _, err := p.store.MarkEmailMessageSent(ctx, messageID, providerID); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return fmt.Errorf("message left PENDING during send: %w", ErrIllegalState)
		}
		return err
	}

	p.logger.Info(ctx, "email message sent")
	return nil
}

// failSend records a send failure on the message. A deadline hit is stored as
// the literal "timeout". The returned error is nil so the job completes and
// is not redelivered.
func (p *EmailProcessor) failSend(ctx context.Context, messageID uuid.UUID, cause error) error {
	errorMessage := cause.Error()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		errorMessage = "timeout"
	}

	p.logger.Error(ctx, "email message send failed", cause)

	// Status writes must outlive a canceled send deadline.
	markCtx := context.WithoutCancel(ctx)
	if _, err := p.store.MarkEmailMessageError(markCtx, messageID, store.EmailMessageStatusPending, errorMessage); err != nil {
		p.logger.Error(markCtx, "failed to record send failure", err)
		return err
	}
	return nil
}

func (p *EmailProcessor) loadAttachments(ctx context.Context, messageID uuid.UUID) ([]mail.Attachment, error) {
	rows, err := p.store.GetEmailMessageAttachments(ctx, messageID)
	if err != nil {
		return nil, err
	}

	attachments := make([]mail.Attachment, 0, len(rows))
	for _, row := range rows {
		content, err := p.blobs.Get(ctx, row.BlobKey)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, mail.Attachment{
			Filename: row.Filename,
			Content:  content,
		})
	}
	return attachments, nil
}

// Duplicate clones a message into a fresh NEW row for an operator resend. The
// clone is prepared and each attachment blob is copied under a fresh key.
func (p *EmailProcessor) Duplicate(ctx context.Context, messageID uuid.UUID) (store.EmailMessage, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_message_id", Value: messageID.String()},
	)

	original, err := p.store.GetEmailMessageByID(ctx, messageID)
	if err != nil {
		return store.EmailMessage{}, err
	}

	templateContext := store.JSONB{}
	for k, v := range original.TemplateContext {
		templateContext[k] = v
	}

	clone, err := p.store.CreateEmailMessage(ctx, store.CreateEmailMessageParams{
		SenderName:      original.SenderName,
		SenderEmail:     original.SenderEmail,
		ToName:          original.ToName,
		ToEmail:         original.ToEmail,
		ReplyToName:     original.ReplyToName,
		ReplyToEmail:    original.ReplyToEmail,
		Subject:         original.Subject,
		TemplatePrefix:  original.TemplatePrefix,
		TemplateContext: templateContext,
		MessageStream:   original.MessageStream,
		CreatedByID:     original.CreatedByID,
		OrgID:           original.OrgID,
	})
	if err != nil {
		return store.EmailMessage{}, err
	}

	clone, err = p.Prepare(ctx, clone.ID)
	if err != nil {
		return store.EmailMessage{}, err
	}

	attachments, err := p.store.GetEmailMessageAttachments(ctx, messageID)
	if err != nil {
		return store.EmailMessage{}, err
	}
	for _, attachment := range attachments {
		newKey, err := p.blobs.Copy(ctx, attachment.BlobKey)
		if err != nil {
			return store.EmailMessage{}, err
		}
		if _, err := p.store.CreateEmailMessageAttachment(ctx, store.CreateEmailMessageAttachmentParams{
			EmailMessageID: clone.ID,
			Filename:       attachment.Filename,
			MimeType:       attachment.MimeType,
			BlobKey:        newKey,
		}); err != nil {
			return store.EmailMessage{}, err
		}
	}

	p.logger.Info(ctx, "email message duplicated")
	return clone, nil
}

// normalizeWhitespace trims and collapses internal whitespace runs, folding
// newlines into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateSubject enforces the subject length limit. The trailing "..." is
// counted inside the limit.
func truncateSubject(subject string, maxLength int) string {
	if maxLength <= 0 {
		return subject
	}
	runes := []rune(subject)
	if len(runes) <= maxLength {
		return subject
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}

// mergeMissing copies defaults into target without overwriting existing keys
func mergeMissing(target, defaults store.JSONB) {
	for k, v := range defaults {
		if _, ok := target[k]; !ok {
			target[k] = v
		}
	}
}

// formatAddress renders "Name <email>", or the bare email without a name
func formatAddress(name, email string) string {
	if email == "" {
		return ""
	}
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// extensionForMimeType derives the extension from the filename and verifies
// it maps to the declared MIME type.
func extensionForMimeType(filename, mimeType string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "", fmt.Errorf("filename %q has no extension: %w", filename, ErrMimeMismatch)
	}

	declared, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", fmt.Errorf("invalid mime type %q: %w", mimeType, ErrMimeMismatch)
	}

	known := mime.TypeByExtension("." + ext)
	if known == "" {
		return "", fmt.Errorf("unknown extension %q: %w", ext, ErrMimeMismatch)
	}
	expected, _, err := mime.ParseMediaType(known)
	if err != nil || expected != declared {
		return "", fmt.Errorf("mime type %q does not match extension %q: %w", declared, ext, ErrMimeMismatch)
	}
	return ext, nil
}
