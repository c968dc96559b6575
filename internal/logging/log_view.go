package logging

import (
    "fmt"
    "hash/fnv"
    "image/color"
    "time"

    "fyne.io/fyne/v2"
    "fyne.io/fyne/v2/canvas"
    "fyne.io/fyne/v2/container"
)

// LogLevel is the severity of one log line in a LogView.
type LogLevel int

const (
    LogInfo LogLevel = iota
    LogWarning
    LogError
    LogSuccess
    // LogRetransmit and LogFastRetransmit are eftp-specific severities for
    // scheduler-emitted retransmissions, distinct from a generic warning:
    // a reader watching the monitor wants to tell "a fragment was lost and
    // recovered" apart from "something is actually wrong".
    LogRetransmit
    LogFastRetransmit
)

// LogEntry representa uma linha de log formatada.
type LogEntry struct {
    Level LogLevel
    Tag   string
    Text  string
    Time  time.Time
}

// triPalette gives each distinct connection tag (an eftp Tri string, e.g.
// "A->B:7") a stable, visually distinct color across the log view, so a
// reader can follow one transfer's lines among several interleaved ones
// without needing to re-read the tag text every line.
var triPalette = []color.Color{
    color.RGBA{0x5D, 0xAD, 0xE2, 0xFF},
    color.RGBA{0xF5, 0xB0, 0x41, 0xFF},
    color.RGBA{0xA9, 0x7C, 0xE0, 0xFF},
    color.RGBA{0x58, 0xC9, 0xB9, 0xFF},
    color.RGBA{0xE0, 0x78, 0x8E, 0xFF},
    color.RGBA{0x8E, 0xC7, 0x5C, 0xFF},
}

// tagColor derives a stable color for tag by hashing it into triPalette, so
// the same tag always renders with the same color for the life of the
// process.
func tagColor(tag string) color.Color {
    if tag == "" {
        return color.White
    }
    h := fnv.New32a()
    _, _ = h.Write([]byte(tag))
    return triPalette[int(h.Sum32())%len(triPalette)]
}

// LogView é um visor de logs rolável com cores por nível.
type LogView struct {
    box      *fyne.Container
    scroll   *container.Scroll
    entries  []LogEntry
    maxLines int
}

// NewLogView cria um visor de log responsivo e rolável.
func NewLogView() *LogView {
    box := container.NewVBox()
    scroll := container.NewVScroll(box)
    scroll.SetMinSize(fyne.NewSize(600, 300))
    return &LogView{box: box, scroll: scroll, maxLines: 1000}
}

// CanvasObject retorna o widget para inserir no layout.
func (lv *LogView) CanvasObject() fyne.CanvasObject { return lv.scroll }

// Clear remove todas as linhas.
func (lv *LogView) Clear() {
    lv.entries = nil
    lv.box.Objects = nil
    lv.box.Refresh()
}

// Append adiciona uma nova linha, mantendo limite e fazendo scroll.
func (lv *LogView) Append(level LogLevel, msg string) {
    lv.AppendTagged(level, "", msg)
}

// AppendTagged adiciona uma nova linha associada a um tag (tipicamente um
// Tri.String() de eftp, ex. "A->B:7"), renderizando o tag com uma cor
// estável por conexão para distinguir transferências concorrentes no log.
func (lv *LogView) AppendTagged(level LogLevel, tag string, msg string) {
    e := LogEntry{Level: level, Tag: tag, Text: msg, Time: time.Now()}
    lv.entries = append(lv.entries, e)
    if len(lv.entries) > lv.maxLines {
        // remove metade antiga para evitar custo de shift frequente
        lv.entries = lv.entries[len(lv.entries)-lv.maxLines/2:]
        // rebuild visual
        lv.box.Objects = nil
        for _, ent := range lv.entries { lv.box.Add(lv.renderEntry(ent)) }
    } else {
        lv.box.Add(lv.renderEntry(e))
    }
    lv.box.Refresh()
    // tenta rolar para baixo (ScrollToBottom disponível nas versões mais novas; fallback manual ignorado)
    if lv.scroll != nil { lv.scroll.ScrollToBottom() }
}

func (lv *LogView) colorFor(level LogLevel) color.Color {
    // Paleta para fundo escuro: INFO branco, WARN amarelo, ERROR vermelho,
    // SUCCESS verde, RETRANSMIT âmbar, FASTRETRANSMIT laranja mais forte
    // (uma perda recuperada por ack-gap chega antes do timeout, então
    // merece uma cor mais chamativa que um timeout comum).
    switch level {
    case LogError:
        return color.RGBA{0xFF, 0x55, 0x55, 0xFF}
    case LogWarning:
        return color.RGBA{0xFF, 0xD7, 0x64, 0xFF}
    case LogSuccess:
        return color.RGBA{0x6A, 0xE3, 0x7A, 0xFF} // verde suave
    case LogRetransmit:
        return color.RGBA{0xE0, 0xB0, 0x40, 0xFF}
    case LogFastRetransmit:
        return color.RGBA{0xFF, 0x8A, 0x3D, 0xFF}
    default: // INFO
        return color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
    }
}

func (lv *LogView) labelFor(level LogLevel) string {
    switch level {
    case LogError: return "ERROR"
    case LogWarning: return "WARN"
    case LogSuccess: return "SUCCESS"
    case LogRetransmit: return "RETRANSMIT"
    case LogFastRetransmit: return "FAST-RETRANSMIT"
    default: return "INFO"
    }
}

func (lv *LogView) renderEntry(e LogEntry) fyne.CanvasObject {
    ts := e.Time.Format("15:04:05")
    body := canvas.NewText(fmt.Sprintf("[%s] %s: %s", ts, lv.labelFor(e.Level), e.Text), lv.colorFor(e.Level))
    body.Alignment = fyne.TextAlignLeading
    body.TextSize = 12

    if e.Tag == "" {
        return body
    }

    tagText := canvas.NewText(e.Tag, tagColor(e.Tag))
    tagText.Alignment = fyne.TextAlignLeading
    tagText.TextSize = 12
    tagText.TextStyle = fyne.TextStyle{Bold: true}
    return container.NewHBox(tagText, body)
}
