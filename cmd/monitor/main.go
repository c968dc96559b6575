// Command monitor is an optional Fyne GUI that starts an eftp dispatcher
// (sender or receiver, UDP or raw Ethernet) and displays its live metrics
// and log output. It is not part of the core protocol; it exists to give
// the teacher's fyne.io/fyne/v2 dependency a genuine, exercised home.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"eftp/internal/config"
	"eftp/internal/dispatcher"
	"eftp/internal/link"
	"eftp/internal/logging"
	"eftp/internal/ui"
)

func main() {
	if runtime.GOOS == "windows" && strings.TrimSpace(os.Getenv("FYNE_DRIVER")) == "" {
		_ = os.Setenv("FYNE_DRIVER", "software")
	}

	settings := config.LoadMonitorSettings()

	a := app.New()
	a.Settings().SetTheme(ui.NewCustomTheme())
	w := a.NewWindow("eftp monitor")

	hostEntry := widget.NewEntry()
	hostEntry.SetText(settings.Host)
	portEntry := widget.NewEntry()
	portEntry.SetText(strconv.Itoa(settings.Port))
	portEntry.OnChanged = func(text string) {
		sanitized := ui.FormatPort(text)
		if sanitized != text {
			portEntry.SetText(sanitized)
		}
	}
	roleEntry := widget.NewSelect([]string{string(config.RoleSender), string(config.RoleReceiver)}, func(string) {})
	roleEntry.SetSelected(settings.Role)
	ifaceEntry := widget.NewEntry()
	ifaceEntry.SetText(settings.Interface)
	ifaceEntry.SetPlaceHolder("eth0")
	backendEntry := widget.NewSelect([]string{"udp", "ethernet"}, func(string) {})
	if settings.UseEthernet {
		backendEntry.SetSelected("ethernet")
	} else {
		backendEntry.SetSelected("udp")
	}

	status := ui.NewStatusBar()
	status.SetStatus("stopped")
	connStatus := ui.NewConnectionStatus()

	hostValid := ui.NewValidationIndicator()
	hostEntry.OnChanged = func(text string) {
		if err := config.ValidateHost(ui.FormatIP(text)); err != nil {
			hostValid.SetValid(false, err.Error())
		} else {
			hostValid.SetValid(true, "ok")
		}
	}
	hostEntry.OnChanged(hostEntry.Text)

	activeLab := widget.NewLabel("Active connections: 0")
	bytesLab := widget.NewLabel("Bytes sent/recv: 0 / 0")
	segsLab := widget.NewLabel("Segments sent/recv: 0 / 0")
	retrLab := widget.NewLabel("Retransmissions (timeout/fast): 0 / 0")

	logView := logging.NewLogView()
	runUI := func(fn func()) { fyne.Do(fn) }
	logAppend := func(level logging.LogLevel, msg string) {
		runUI(func() { logView.Append(level, msg) })
	}

	var d *dispatcher.Dispatcher
	var stopTicker context.CancelFunc

	// sink forwards dispatcher events into the log view, tagged by
	// tri so concurrent transfers stay visually distinguishable, and
	// colored by the real severity of the event rather than a generic
	// info line.
	sink := eventSinkFunc(func(tri, kind, detail string) {
		var level logging.LogLevel
		var msg string
		switch kind {
		case "retransmit":
			level = logging.LogRetransmit
			msg = "retransmit " + detail
		case "fast_retransmit":
			level = logging.LogFastRetransmit
			msg = "fast retransmit " + detail
		case "send_complete":
			level = logging.LogSuccess
			msg = "send complete"
		case "recv_complete":
			level = logging.LogSuccess
			msg = "receive complete"
		default:
			level = logging.LogInfo
			msg = kind
		}
		runUI(func() { logView.AppendTagged(level, tri, msg) })
	})

	startBtn := ui.NewToolbarButton(theme.MediaPlayIcon(), "start dispatcher", func() {
		if d != nil {
			return
		}
		role := config.Role(roleEntry.Selected)
		var lnk link.Link
		var desc string

		if backendEntry.Selected == "ethernet" {
			iface := strings.TrimSpace(ifaceEntry.Text)
			if err := config.ValidateInterfaceName(iface); err != nil {
				status.SetStatus("error: " + err.Error())
				return
			}
			ethLink, err := link.NewEthernetLink(iface, config.MTUDefault)
			if err != nil {
				status.SetStatus("error: " + err.Error())
				logAppend(logging.LogError, err.Error())
				return
			}
			lnk = ethLink
			desc = fmt.Sprintf("running as %s on interface %s", role, iface)
		} else {
			host := hostEntry.Text
			port, _ := strconv.Atoi(strings.TrimSpace(portEntry.Text))
			if err := config.ValidateHost(host); err != nil {
				status.SetStatus("error: " + err.Error())
				return
			}
			if err := config.ValidatePort(port); err != nil {
				status.SetStatus("error: " + err.Error())
				return
			}
			udpLink, err := link.NewUDPLink(host, port)
			if err != nil {
				status.SetStatus("error: " + err.Error())
				logAppend(logging.LogError, err.Error())
				return
			}
			lnk = udpLink
			desc = fmt.Sprintf("running as %s on %s:%d", role, host, port)
		}

		d = dispatcher.New(lnk, role, nil)
		d.SetEventSink(sink)
		status.SetStatus(desc)
		connStatus.SetStatus(true)
		logAppend(logging.LogSuccess, "dispatcher started")

		ctx, cancel := context.WithCancel(context.Background())
		stopTicker = cancel
		go func() {
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					snap := d.Metrics.GetSnapshot()
					runUI(func() {
						activeLab.SetText(fmt.Sprintf("Active connections: %d (peak %d)", snap.ActiveConnections, snap.PeakConnections))
						bytesLab.SetText(fmt.Sprintf("Bytes sent/recv: %d / %d", snap.TotalBytesSent, snap.TotalBytesReceived))
						segsLab.SetText(fmt.Sprintf("Segments sent/recv: %d / %d", snap.TotalSegmentsSent, snap.TotalSegmentsReceived))
						retrLab.SetText(fmt.Sprintf("Retransmissions (timeout/fast): %d / %d", snap.TotalRetransmissions, snap.TotalFastRetransmissions))
						status.SetProgress(float64(snap.ActiveConnections) / 10.0)
					})
				}
			}
		}()
	})

	stopBtn := ui.NewToolbarButton(theme.MediaStopIcon(), "stop dispatcher", func() {
		if d == nil {
			return
		}
		if stopTicker != nil {
			stopTicker()
		}
		_ = d.Close()
		d = nil
		status.SetStatus("stopped")
		connStatus.SetStatus(false)
		logAppend(logging.LogInfo, "dispatcher stopped")
	})

	form := widget.NewForm(
		&widget.FormItem{Text: "Backend", Widget: backendEntry},
		&widget.FormItem{Text: "Host", Widget: hostEntry},
		&widget.FormItem{Text: "", Widget: hostValid},
		&widget.FormItem{Text: "Port", Widget: portEntry},
		&widget.FormItem{Text: "Interface", Widget: ifaceEntry},
		&widget.FormItem{Text: "Role", Widget: roleEntry},
	)
	buttons := container.NewHBox(startBtn, stopBtn, connStatus)
	metricsBox := container.NewGridWithColumns(2,
		container.NewVBox(activeLab, bytesLab),
		container.NewVBox(segsLab, retrLab),
	)
	top := container.NewVBox(form, buttons, status, metricsBox, widget.NewLabel("Log:"))
	w.SetContent(container.NewBorder(top, nil, nil, nil, logView.CanvasObject()))
	w.Resize(fyne.NewSize(float32(settings.WindowWidth), float32(settings.WindowHeight)))

	w.SetCloseIntercept(func() {
		settings.Host = hostEntry.Text
		if p, err := strconv.Atoi(strings.TrimSpace(portEntry.Text)); err == nil {
			settings.Port = p
		}
		settings.Role = roleEntry.Selected
		settings.Interface = ifaceEntry.Text
		settings.UseEthernet = backendEntry.Selected == "ethernet"
		size := w.Content().Size()
		settings.WindowWidth = int(size.Width)
		settings.WindowHeight = int(size.Height)
		if err := config.SaveMonitorSettings(settings); err != nil {
			fmt.Printf("failed to save monitor settings: %v\n", err)
		}
		if d != nil {
			_ = d.Close()
		}
		w.Close()
	})

	w.ShowAndRun()
}

// eventSinkFunc adapts a plain function to dispatcher.EventSink, the way
// http.HandlerFunc adapts a function to http.Handler.
type eventSinkFunc func(tri, kind, detail string)

func (f eventSinkFunc) Event(tri, kind, detail string) { f(tri, kind, detail) }
