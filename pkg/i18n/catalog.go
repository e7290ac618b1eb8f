package i18n

import (
	"fmt"
)

// Translator resolves a message key into a localized string. Arguments are
// interpolated with fmt verbs embedded in the catalog entry.
type Translator interface {
	T(key string, args ...interface{}) string
	Locale() string
}

// Catalog is a locale-keyed string table. Missing keys fall back to the
// English table, and failing that to the key itself so that a missing
// translation never turns into an empty message.
type Catalog struct {
	locale  string
	entries map[string]string
}

func NewCatalog(locale string) *Catalog {
	entries := english
	if locale != "" && locale != "en" {
		if t, ok := tables[locale]; ok {
			merged := make(map[string]string, len(english))
			for k, v := range english {
				merged[k] = v
			}
			for k, v := range t {
				merged[k] = v
			}
			entries = merged
		}
	}
	return &Catalog{locale: localeOrDefault(locale), entries: entries}
}

func localeOrDefault(locale string) string {
	if locale == "" {
		return "en"
	}
	return locale
}

func (c *Catalog) Locale() string {
	return c.locale
}

func (c *Catalog) T(key string, args ...interface{}) string {
	entry, ok := c.entries[key]
	if !ok {
		entry, ok = english[key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return entry
	}
	return fmt.Sprintf(entry, args...)
}

var tables = map[string]map[string]string{
	"de": german,
}

var english = map[string]string{
	// base persona and capability instructions
	"systemInstructionBase":                   "You are Lampwick, a helpful multilingual assistant. Answer in the user's language (current locale: %s). Be concise, accurate and friendly.",
	"systemInstructionMemory":                 "\n\nWhen the user shares a lasting personal fact worth remembering, append a <memory>{\"facts\":[\"...\"]}</memory> block after your answer. Only store durable facts, never transient details.",
	"systemInstructionWeather":                "\n\nYou can call getWeatherForecast to retrieve real weather data. Use it whenever the user asks about weather instead of guessing.",
	"systemInstructionPdfGeneration":          "\n\nTo produce a PDF document, reply with a short confirmation sentence followed by a ```json block: {\"action\":\"generate_pdf\",\"filename\":\"...\",\"title\":\"...\",\"content\":\"<markdown>\"}.",
	"systemInstructionWordGeneration":         "\n\nTo produce a Word document, reply with a confirmation sentence followed by a ```json block: {\"action\":\"generate_word\",\"filename\":\"...\",\"content\":[...paragraph descriptors...]}.",
	"systemInstructionComputerControl":        "\n\nYou can call computerControl to change the interface theme, font or background, or to open the login screen, when the user asks for it.",
	"systemInstructionOpenWebsite":            "\n\nYou can call openWebsite to open a URL for the user. Only use full http(s) URLs.",
	"systemInstructionYouTubeSearch":          "\n\nYou can call searchYouTube to find videos when the user asks for video content.",
	"systemInstructionMath":                   "You are a meticulous mathematician. Reason step by step, verify each intermediate result, and present the final answer clearly. Do not use tools.",
	"systemInstructionCapableTier":            "\n\nTake your time to reason carefully before answering. Prefer depth and correctness over speed.",
	"systemInstructionCreativeWriting":        "\n\nAdopt an imaginative, expressive voice for creative work. Vary rhythm and vocabulary; avoid formulaic phrasing.",
	"systemInstructionCodeGeneration":         "\n\nWhen writing code, produce complete, runnable snippets with brief explanations. For standalone web demos, emit a single trailing ```html block.",
	"systemInstructionSpreadsheetGeneration":  "\n\nTo produce a spreadsheet, reply with a confirmation sentence followed by a ```json block: {\"action\":\"generate_spreadsheet\",\"filename\":\"...\",\"sheets\":[{\"sheetName\":\"...\",\"headers\":[...],\"rows\":[[...]]}]}.",
	"systemInstructionPresentationGeneration": "\n\nTo produce a presentation, reply with a confirmation sentence followed by a ```json block: {\"action\":\"generate_presentation\",\"filename\":\"...\",\"data\":{\"theme\":{...},\"slides\":[...]}}. Slides may declare an image prompt.",
	"systemInstructionImageGeneration":        "\n\nTo produce an image, reply with a confirmation sentence followed by a ```json block: {\"action\":\"generate_image\",\"prompt\":\"...\",\"count\":1}.",
	"systemInstructionVideoGeneration":        "\n\nTo produce a video, reply with a ```json block: {\"action\":\"generate_video\",\"prompt\":\"...\",\"aspectRatio\":\"16:9\"}.",
	"systemInstructionDeepSearch":             "\n\nUse web search to ground your answer in current sources. Cite what you find and prefer primary sources.",
	"systemInstructionAnalyzeRequest":         "Classify the user's latest request. Respond with a single JSON object {\"domain\":...,\"complexity\":...,\"intent\":...,\"tool\":...} and nothing else. domain: general|creative|technical|research|data_analysis|spreadsheet|video|math. complexity: simple|moderate|complex. intent: conversation|information_retrieval|content_creation|problem_solving|data_analysis|code_development|creative_ideation. tool: standard|deep_search|code_interpreter|creative_suite|spreadsheet_specialist|multi_agent_collaboration.",
	"currentDateTime":                         "The current date and time is %s.",
	"userName":                                "The user's name is %s.",
	"memoryInfoTitle":                         "Facts you remember about the user",

	// tool placeholders
	"consultingWeatherService": "Consulting the weather service...",
	"performingAction":         "Performing action: %s...",
	"openingWebsite":           "Opening website...",
	"searchingYouTubeFor":      "Searching YouTube for \"%s\"...",
	"themeChanged":             "Theme changed to %s.",
	"fontChanged":              "Font changed to %s.",
	"backgroundChanged":        "Background changed to %s.",

	// turn lifecycle
	"generationStopped":        "Generation stopped.",
	"emptyResponsePlaceholder": "I could not produce a response. Please try again.",
	"apiKeyError":              "Your API key is missing or invalid. Please check your configuration.",
	"networkError":             "A network error occurred. Please check your connection and try again.",
	"errorMessageDefault":      "Something went wrong: %s",
	"toastErrorTitle":          "Error",

	// artifact confirmations and errors
	"imageGenerationConfirmation":        "Sure, generating your image now.",
	"pdfGenerationConfirmation":          "Sure, generating the document \"%s\" now.",
	"spreadsheetGenerationConfirmation":  "Sure, generating the spreadsheet \"%s\" now.",
	"presentationGenerationConfirmation": "Sure, generating the presentation \"%s\" now.",
	"wordGenerationConfirmation":         "Sure, generating the document \"%s\" now.",
	"imageGenerationError":               "Could not generate the image",
	"pdfGenerationError":                 "Could not generate the PDF",
	"spreadsheetGenerationError":         "Could not generate the spreadsheet",
	"presentationGenerationError":        "Could not generate the presentation",
	"wordGenerationError":                "Could not generate the document",
	"videoGenerationError":               "Could not generate the video",
	"videoStatusInitializing":            "Initializing video generation...",
	"videoStatusGenerating":              "Generating video, this can take a few minutes...",
	"videoStatusFinalizing":              "Finalizing video...",

	// analysis pipeline narration
	"coreStatusIngesting":       "Ingesting request",
	"coreStatusDeconstructing":  "Deconstructing intent",
	"coreStatusStrategizing":    "Selecting strategy",
	"coreStatusDispatching":     "Dispatching agents",
	"coreStatusSynthesizing":    "Synthesizing results",
	"coreStatusFinalizing":      "Finalizing response",
	"agentDeepSearch":           "Deep Search Agent",
	"agentCodeInterpreter":      "Code Interpreter Agent",
	"agentSpreadsheetSpecialist": "Spreadsheet Agent",
	"agentCreativeSuite":        "Creative Suite Agent",
	"agentTaskPending":          "Waiting for dispatch",
	"agentTaskInitializing":     "Initializing",
	"agentTaskSearching":        "Searching sources",
	"agentTaskCoding":           "Writing and testing code",
	"agentTaskCreativeWriting":  "Drafting creative content",
	"agentTaskSpreadsheet":      "Building data sheets",
	"intent_label":              "Intent",
	"domain_label":              "Domain",
	"complexity_label":          "Complexity",
	"strategyLabel":             "Strategy",

	// memory
	"memory":                "Memory",
	"memoryAutoSaveSuccess": "I saved a new fact to memory.",

	// accounts
	"loginError":              "Invalid email or password.",
	"registerErrorUserExists": "An account with this email already exists.",

	// store / persistence
	"dataLoadError":         "Your saved data could not be read and was backed up. Starting fresh.",
	"conversationLoadError": "The conversation \"%s\" could not be loaded and was skipped.",
	"newChatTitle":          "New chat",
	"imageChatTitle":        "Image conversation",
	"audioChatTitle":        "Audio conversation",
	"describeThisImage":     "Describe this image.",
	"transcribeThisAudio":   "Transcribe this audio.",
	"unsupportedFileType":   "This file type is not supported.",
}

var german = map[string]string{
	"generationStopped":        "Generierung gestoppt.",
	"emptyResponsePlaceholder": "Ich konnte keine Antwort erzeugen. Bitte versuche es erneut.",
	"apiKeyError":              "Dein API-Schlüssel fehlt oder ist ungültig. Bitte prüfe die Konfiguration.",
	"networkError":             "Ein Netzwerkfehler ist aufgetreten. Bitte prüfe deine Verbindung.",
	"errorMessageDefault":      "Etwas ist schiefgelaufen: %s",
	"newChatTitle":             "Neuer Chat",
	"consultingWeatherService": "Wetterdienst wird abgefragt...",
	"coreStatusIngesting":      "Anfrage wird eingelesen",
	"coreStatusDeconstructing": "Absicht wird analysiert",
	"coreStatusStrategizing":   "Strategie wird gewählt",
	"coreStatusDispatching":    "Agenten werden gestartet",
	"coreStatusSynthesizing":   "Ergebnisse werden zusammengeführt",
	"coreStatusFinalizing":     "Antwort wird abgeschlossen",
}
