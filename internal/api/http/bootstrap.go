package http

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// bootstrapPage is the minimal renderer a session serves at /terminal/{id}.
// It locates the event channel, joins the session's room and wires keyboard
// input. Real embedders replace this with their own renderer view.
const bootstrapPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>shellmux {{.SessionID}}</title>
<style>
  body { margin: 0; background: #1e1e1e; }
  #term { font: 14px/1.3 monospace; color: #d4d4d4; padding: 8px;
          white-space: pre-wrap; word-break: break-all; outline: none; }
  #status { font: 12px monospace; color: #808080; padding: 2px 8px; }
</style>
</head>
<body>
<div id="status">connecting&hellip;</div>
<div id="term" tabindex="0"></div>
<script>
  const sessionId = {{.SessionID}};
  const term = document.getElementById("term");
  const status = document.getElementById("status");
  const proto = location.protocol === "https:" ? "wss:" : "ws:";
  const sock = new WebSocket(proto + "//" + location.host + "/ws?session_id=" + sessionId);

  sock.onopen = () => {
    status.textContent = sessionId;
    setInterval(() => sock.send(JSON.stringify({type: "heartbeat", session_id: sessionId})), 15000);
  };
  sock.onclose = () => { status.textContent = "disconnected"; };
  sock.onmessage = (msg) => {
    const ev = JSON.parse(msg.data);
    if (ev.type === "pty-output") {
      term.textContent += atob(ev.output);
      window.scrollTo(0, document.body.scrollHeight);
    } else if (ev.type === "session-ended") {
      status.textContent = "process exited";
    }
  };

  term.focus();
  term.addEventListener("keydown", (e) => {
    let data = e.key;
    if (e.key === "Enter") data = "\r";
    else if (e.key === "Backspace") data = "\x7f";
    else if (e.key === "Tab") { data = "\t"; e.preventDefault(); }
    else if (e.ctrlKey && e.key.length === 1) {
      data = String.fromCharCode(e.key.toUpperCase().charCodeAt(0) - 64);
    } else if (e.key.length !== 1) return;
    sock.send(JSON.stringify({type: "pty-input", session_id: sessionId, input: btoa(data)}));
  });
</script>
</body>
</html>`

var bootstrapTmpl = template.Must(template.New("bootstrap").Parse(bootstrapPage))

// Terminal serves the per-session bootstrap document.
func (h *Handlers) Terminal(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.registry.Get(sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := bootstrapTmpl.Execute(c.Writer, gin.H{"SessionID": sessionID}); err != nil {
		h.log.Warn("bootstrap page render failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}
