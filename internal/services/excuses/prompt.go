package excuses

import (
	"fmt"
	"strings"
)

var languageNames = map[string]string{
	"en": "English",
	"zh": "Chinese (Simplified)",
	"ja": "Japanese",
	"de": "German",
	"fr": "French",
	"ko": "Korean",
	"es": "Spanish",
}

var categoryDescriptions = map[Category]map[string]string{
	CategoryLate: {
		"en": "being late to work/school/an appointment",
		"zh": "上班/上学/约会迟到",
		"ja": "仕事・学校・約束に遅刻した",
		"de": "zu spät zur Arbeit/Schule/einem Termin kommen",
		"fr": "être en retard au travail/à l'école/à un rendez-vous",
		"ko": "직장/학교/약속에 늦음",
		"es": "llegar tarde al trabajo/escuela/cita",
	},
	CategorySickLeave: {
		"en": "taking a sick day or time off",
		"zh": "请病假或休息",
		"ja": "病気休暇を取る",
		"de": "einen Krankheitstag nehmen",
		"fr": "prendre un jour de maladie",
		"ko": "병가를 내다",
		"es": "tomar un día por enfermedad",
	},
	CategoryDecline: {
		"en": "politely declining an invitation or request",
		"zh": "礼貌地拒绝邀请或请求",
		"ja": "招待や依頼を丁重に断る",
		"de": "eine Einladung oder Anfrage höflich ablehnen",
		"fr": "décliner poliment une invitation ou une demande",
		"ko": "초대나 요청을 정중히 거절",
		"es": "rechazar cortésmente una invitación o solicitud",
	},
	CategoryForgot: {
		"en": "forgetting something important",
		"zh": "忘记了重要的事情",
		"ja": "大切なことを忘れた",
		"de": "etwas Wichtiges vergessen",
		"fr": "avoir oublié quelque chose d'important",
		"ko": "중요한 것을 잊어버림",
		"es": "olvidar algo importante",
	},
	CategoryDeadline: {
		"en": "missing a deadline",
		"zh": "错过截止日期",
		"ja": "締め切りに間に合わなかった",
		"de": "eine Frist verpassen",
		"fr": "manquer une date limite",
		"ko": "마감일을 놓침",
		"es": "incumplir un plazo",
	},
	CategoryMeeting: {
		"en": "missing or being late to a meeting",
		"zh": "缺席或会议迟到",
		"ja": "会議を欠席または遅刻した",
		"de": "eine Besprechung verpassen oder zu spät kommen",
		"fr": "manquer ou être en retard à une réunion",
		"ko": "회의 불참 또는 지각",
		"es": "faltar o llegar tarde a una reunión",
	},
	CategoryHomework: {
		"en": "not completing homework or an assignment",
		"zh": "没完成作业或任务",
		"ja": "宿題や課題を完成できなかった",
		"de": "Hausaufgaben oder eine Aufgabe nicht erledigen",
		"fr": "ne pas avoir terminé ses devoirs ou un devoir",
		"ko": "숙제나 과제를 못 함",
		"es": "no completar la tarea o un trabajo",
	},
	CategoryOther: {
		"en": "a general situation requiring an excuse",
		"zh": "需要借口的一般情况",
		"ja": "言い訳が必要な一般的な状況",
		"de": "eine allgemeine Situation, die eine Entschuldigung erfordert",
		"fr": "une situation générale nécessitant une excuse",
		"ko": "변명이 필요한 일반적인 상황",
		"es": "una situación general que requiere una excusa",
	},
}

var urgencyInstructions = map[Urgency]map[string]string{
	UrgencyNormal: {
		"en": "believable and reasonable - something that could actually happen",
		"zh": "可信且合理 - 真实可能发生的事情",
		"ja": "信じられて妥当な - 実際に起こりうること",
		"de": "glaubwürdig und vernünftig - etwas, das wirklich passieren könnte",
		"fr": "crédible et raisonnable - quelque chose qui pourrait vraiment arriver",
		"ko": "믿을 수 있고 합리적인 - 실제로 일어날 수 있는 일",
		"es": "creíble y razonable - algo que podría suceder realmente",
	},
	UrgencyUrgent: {
		"en": "slightly dramatic but still plausible - emphasize urgency",
		"zh": "略显戏剧化但仍可信 - 强调紧急性",
		"ja": "少しドラマチックだが信じられる - 緊急性を強調",
		"de": "leicht dramatisch aber noch plausibel - Dringlichkeit betonen",
		"fr": "légèrement dramatique mais encore plausible - souligner l'urgence",
		"ko": "약간 극적이지만 여전히 그럴듯한 - 긴급함 강조",
		"es": "ligeramente dramático pero aún plausible - enfatizar urgencia",
	},
	UrgencyExtreme: {
		"en": "wild and dramatic - almost unbelievable but creative and funny",
		"zh": "疯狂而戏剧化 - 几乎难以置信但有创意且有趣",
		"ja": "ワイルドでドラマチック - ほぼ信じられないが創造的で面白い",
		"de": "wild und dramatisch - fast unglaublich aber kreativ und lustig",
		"fr": "fou et dramatique - presque incroyable mais créatif et drôle",
		"ko": "극적이고 과장된 - 거의 믿기 힘들지만 창의적이고 재미있는",
		"es": "salvaje y dramático - casi increíble pero creativo y divertido",
	},
}

func categoryDescription(category Category, language string) string {
	descs, ok := categoryDescriptions[category]
	if !ok {
		descs = categoryDescriptions[CategoryOther]
	}
	if d, ok := descs[language]; ok {
		return d
	}
	return descs["en"]
}

func urgencyInstruction(urgency Urgency, language string) string {
	insts, ok := urgencyInstructions[urgency]
	if !ok {
		insts = urgencyInstructions[UrgencyNormal]
	}
	if i, ok := insts[language]; ok {
		return i
	}
	return insts["en"]
}

func buildPrompt(p Params) string {
	langName, ok := languageNames[p.Language]
	if !ok {
		langName = "English"
	}

	contextPart := ""
	if strings.TrimSpace(p.Context) != "" {
		contextPart = "\nAdditional context from user: " + p.Context
	}

	return fmt.Sprintf(`You are a creative excuse generator. Generate exactly %d unique excuses for: %s

The excuses should be: %s
%s

IMPORTANT: Generate all content in %s language.

Return a JSON array with exactly %d objects, each with:
- "text": The excuse itself (1-3 sentences)
- "tone": A single word describing the tone (e.g., "sincere", "apologetic", "humorous", "dramatic")
- "tip": A brief delivery tip (1 short sentence)

Return ONLY the JSON array, no other text.`,
		excusesPerRequest,
		categoryDescription(p.Category, p.Language),
		urgencyInstruction(p.Urgency, p.Language),
		contextPart,
		langName,
		excusesPerRequest,
	)
}
