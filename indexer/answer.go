package indexer

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/chansereyvath/lessonsearch/monitor"
	"github.com/chansereyvath/lessonsearch/textproc"
)

// Answer languages.
const (
	LanguageKhmer   = "khmer"
	LanguageEnglish = "english"
)

const (
	noAnswerEnglish = "I'm not sure based on this lesson."
	noAnswerKhmer   = "ខ្ញុំមិនប្រាកដទេ ដោយផ្អែកលើមេរៀននេះ។"
)

// chunkMarker matches residual bracketed chunk references the model was
// told not to emit.
var chunkMarker = regexp.MustCompile(`(?i)\[\s*chunk\s*\d+\s*\]`)

// Citation points at a retrieved chunk that backed an answer.
type Citation struct {
	ChunkID    int64   `json:"chunk_id"`
	Index      int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
}

// Answer is the result of AnswerQuestion. Found is false when no chunks
// could be retrieved for the question.
type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations,omitempty"`
	Language  string     `json:"language"`
	Found     bool       `json:"found"`
}

// AnswerQuestion retrieves the top-k chunks for the question, assembles
// them into a context block and asks the chat chain to answer strictly
// from that context, in Khmer when the context (or, failing that, the
// question) contains Khmer script.
func (ix *Indexer) AnswerQuestion(ctx context.Context, docID, question string, k int) (Answer, error) {
	recs, err := ix.RetrieveTopK(ctx, docID, question, k)
	if err != nil {
		return Answer{}, err
	}

	lang := answerLanguage("", question)
	if len(recs) == 0 {
		return Answer{Answer: noAnswer(lang), Language: lang, Found: false}, nil
	}

	var sb strings.Builder
	citations := make([]Citation, len(recs))
	for i, r := range recs {
		fmt.Fprintf(&sb, "[Chunk %d] %s\n\n", r.Index, r.Text)
		citations[i] = Citation{ChunkID: r.ID, Index: r.Index, Similarity: r.Similarity}
	}
	contextBlock := sb.String()

	lang = answerLanguage(contextBlock, question)
	system := systemPrompt(lang)
	user := fmt.Sprintf("Lesson context:\n%s\nQuestion: %s", contextBlock, question)

	reply, ok := ix.gw.Chat(ctx, system, user)
	if !ok {
		log.Printf("[indexer] chat unavailable for %s, returning safe default", docID)
		return Answer{Answer: noAnswer(lang), Citations: citations, Language: lang, Found: true}, nil
	}

	ix.metrics.Inc(monitor.QuestionsAnswered)
	answer := strings.TrimSpace(chunkMarker.ReplaceAllString(reply, ""))
	return Answer{Answer: answer, Citations: citations, Language: lang, Found: true}, nil
}

// answerLanguage selects the response language: Khmer when the retrieved
// context carries Khmer script, otherwise the question's script decides.
func answerLanguage(contextBlock, question string) string {
	if contextBlock != "" && textproc.ContainsKhmer(contextBlock) {
		return LanguageKhmer
	}
	if textproc.ContainsKhmer(question) {
		return LanguageKhmer
	}
	return LanguageEnglish
}

func noAnswer(lang string) string {
	if lang == LanguageKhmer {
		return noAnswerKhmer
	}
	return noAnswerEnglish
}

func systemPrompt(lang string) string {
	langName := "English"
	if lang == LanguageKhmer {
		langName = "Khmer"
	}
	return "You are a tutor answering questions about a lesson transcript. " +
		"Answer only from the supplied lesson context. " +
		"If the context does not contain the answer, say you don't know. " +
		"Do not emit bracketed chunk references such as [Chunk 3]. " +
		"Respond in " + langName + "."
}
