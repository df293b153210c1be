package bot

import (
	"context"
	"strings"

	"sisyphe-bot/internal/logger"
	"sisyphe-bot/llm"
	"sisyphe-bot/persona"
)

// 명령 흐름의 고정 응답들. provider 호출 없이 결정적으로 동작해야 하는 것들이다.
const (
	replySearchUsage = "*lève les yeux de son livre* Que veux-tu que je recherche ? Utilise /search suivi de ta question."
	replyFicheUsage  = "*tapote la couverture* Indique un titre : /fiche <titre>."
	replyResumeUsage = "*pose son marque-page* Donne-moi un lien : /resume <url>."
	replyImgUsage    = "*plisse les yeux* Quelle image cherches-tu ? /img <description>."
	replyNoImage     = "*feuillette ses pages* Je n'ai rien trouvé de convenable."
	replyNoResearch  = "*referme un tiroir vide* Cet outil m'est indisponible pour le moment."
	replyEbookUsage  = "*caresse le dos d'un volume* Quel livre cherches-tu ? /ebook <titre>."
	replyNoEbook     = "*parcourt les rayonnages* Aucun exemplaire numérique de ce titre ne m'est accessible."
)

func (r *Router) handleCommand(ctx context.Context, in Inbound, cmd, args, exchangeID string) Reply {
	logger.InfoWithFields("command received", logger.Fields{
		"exchange_id": exchangeID,
		"chat_id":     in.ChatID,
		"command":     cmd,
	})

	isAdmin := r.admins.IsAdmin(in.UserID)
	nickname := r.admins.Nickname(in.UserID, in.Username)

	switch cmd {
	case "start":
		return Reply{Text: persona.Greeting(isAdmin, nickname)}

	case "help":
		return Reply{Text: persona.Help(isAdmin, nickname)}

	case "reset":
		r.store.Reset(in.ChatID)
		return Reply{Text: persona.ReplyReset}

	case "search":
		return r.handleSearch(ctx, args, exchangeID)

	case "fiche":
		return r.handleFiche(ctx, args, exchangeID)

	case "ebook":
		return r.handleEbook(ctx, args, exchangeID)

	case "resume":
		return r.handleResume(ctx, args, exchangeID)

	case "img":
		return r.handleImage(ctx, args, exchangeID)

	default:
		return Reply{Text: persona.ReplyDistracted}
	}
}

func (r *Router) handleSearch(ctx context.Context, query, exchangeID string) Reply {
	if query == "" {
		return Reply{Text: replySearchUsage}
	}
	if r.research == nil {
		return Reply{Text: replyNoResearch}
	}
	result, err := r.research.Search(ctx, query)
	if err != nil {
		logger.ErrorWithFields("search command failed", logger.Fields{
			"exchange_id": exchangeID,
			"error":       err.Error(),
		})
		if llm.IsRateLimited(err) {
			return Reply{Text: persona.ReplyBusy}
		}
		return Reply{Text: persona.ReplyError}
	}
	return Reply{Text: result}
}

func (r *Router) handleFiche(ctx context.Context, title, exchangeID string) Reply {
	if title == "" {
		return Reply{Text: replyFicheUsage}
	}
	if r.research == nil {
		return Reply{Text: replyNoResearch}
	}
	fiche, err := r.research.CreateFiche(ctx, title)
	if err != nil {
		logger.ErrorWithFields("fiche command failed", logger.Fields{
			"exchange_id": exchangeID,
			"error":       err.Error(),
		})
		if llm.IsRateLimited(err) {
			return Reply{Text: persona.ReplyBusy}
		}
		return Reply{Text: persona.ReplyError}
	}
	return Reply{Text: fiche}
}

// handleEbook 은 전자책 다운로드 링크를 찾아 목록으로 돌려준다.
func (r *Router) handleEbook(ctx context.Context, title, exchangeID string) Reply {
	if title == "" {
		return Reply{Text: replyEbookUsage}
	}
	if r.research == nil {
		return Reply{Text: replyNoResearch}
	}
	links, err := r.research.FindBookLinks(ctx, title)
	if err != nil {
		logger.ErrorWithFields("ebook command failed", logger.Fields{
			"exchange_id": exchangeID,
			"title":       title,
			"error":       err.Error(),
		})
		if llm.IsRateLimited(err) {
			return Reply{Text: persona.ReplyBusy}
		}
		return Reply{Text: persona.ReplyError}
	}
	if len(links) == 0 {
		return Reply{Text: replyNoEbook}
	}

	var b strings.Builder
	b.WriteString("*tire un volume de l'étagère* Voici ce que j'ai trouvé pour « ")
	b.WriteString(title)
	b.WriteString(" » :\n")
	for _, link := range links {
		b.WriteString("🔗 ")
		b.WriteString(link)
		b.WriteString("\n")
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}
}

// handleResume 은 페이지 본문을 추출해 체인에 요약을 맡긴다. 세션 히스토리는 쓰지 않는다.
func (r *Router) handleResume(ctx context.Context, pageURL, exchangeID string) Reply {
	if pageURL == "" || !strings.HasPrefix(pageURL, "http") {
		return Reply{Text: replyResumeUsage}
	}

	htmlStr, err := r.fetchPage(ctx, pageURL)
	if err != nil {
		logger.ErrorWithFields("resume fetch failed", logger.Fields{
			"exchange_id": exchangeID,
			"url":         pageURL,
			"error":       err.Error(),
		})
		return Reply{Text: persona.ReplyError}
	}
	text := r.extractText(htmlStr)
	if text == "" {
		return Reply{Text: persona.ReplyError}
	}

	req := llm.Request{
		UserText: "Résume le texte suivant en français, en quelques paragraphes clairs " +
			"qui retiennent les idées essentielles :\n\n" + text,
		SystemPrompt: persona.SystemPrompt,
		Temperature:  r.gen.Temperature,
		MaxTokens:    r.gen.MaxTokens,
		TopP:         r.gen.TopP,
	}
	summary, provider, err := r.chain.Generate(ctx, req)
	if err != nil {
		logger.ErrorWithFields("resume generation failed", logger.Fields{
			"exchange_id": exchangeID,
			"url":         pageURL,
			"error":       err.Error(),
		})
		if llm.IsRateLimited(err) {
			return Reply{Text: persona.ReplyBusy}
		}
		return Reply{Text: persona.ReplyError}
	}
	logger.InfoWithFields("resume generated", logger.Fields{
		"exchange_id": exchangeID,
		"provider":    provider,
	})
	return Reply{Text: persona.Format(summary)}
}

func (r *Router) handleImage(ctx context.Context, query, exchangeID string) Reply {
	if query == "" {
		return Reply{Text: replyImgUsage}
	}
	if r.images == nil {
		return Reply{Text: replyNoResearch}
	}
	urls, err := r.images.Search(ctx, query)
	if err != nil {
		logger.ErrorWithFields("image search failed", logger.Fields{
			"exchange_id": exchangeID,
			"query":       query,
			"error":       err.Error(),
		})
		return Reply{Text: persona.ReplyError}
	}
	if len(urls) == 0 {
		return Reply{Text: replyNoImage}
	}
	return Reply{PhotoURL: urls[0], PhotoCaption: query}
}
