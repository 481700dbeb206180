package server

import (
	"html/template"
	"net/http"
)

// indexTemplate renders the journal snapshot plus a submit form. The
// stream replays the snapshot on connect, so the inline script skips
// event ids the page already rendered.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Relay</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 600px; margin: 40px auto; padding: 20px; }
        #messages { border: 1px solid #ddd; border-radius: 6px; padding: 16px; min-height: 240px; max-height: 480px; overflow-y: auto; margin-bottom: 16px; }
        .message { padding: 8px; margin: 6px 0; background: #f0f0f0; border-radius: 4px; }
        .gap { padding: 8px; margin: 6px 0; color: #999; font-style: italic; }
        form { display: flex; gap: 8px; }
        input[type="text"] { flex: 1; padding: 10px; }
        button { padding: 10px 20px; }
    </style>
</head>
<body>
    <h1>Relay</h1>
    <div id="messages" data-last-id="{{.LastID}}">
    {{- range .Messages}}
        <div class="message">{{.Text}}</div>
    {{- end}}
    </div>
    <form method="POST" action="/v1/messages">
        <input type="text" name="text" placeholder="Type a message..." required autofocus>
        <button type="submit">Send</button>
    </form>
    <script>
        const box = document.getElementById('messages');
        let lastID = Number(box.dataset.lastId) || 0;

        const source = new EventSource('/v1/messages/stream');
        source.addEventListener('message', function(e) {
            const id = Number(e.lastEventId) || 0;
            if (id && id <= lastID) return; // already rendered server-side
            lastID = id;
            const div = document.createElement('div');
            div.className = 'message';
            div.textContent = e.data;
            box.appendChild(div);
            box.scrollTop = box.scrollHeight;
        });
        source.addEventListener('gap', function() {
            const div = document.createElement('div');
            div.className = 'gap';
            div.textContent = 'some messages were skipped';
            box.appendChild(div);
        });

        const form = document.querySelector('form');
        const input = document.querySelector('input[name="text"]');
        form.addEventListener('submit', async function(e) {
            e.preventDefault();
            const text = input.value.trim();
            if (!text) return;
            await fetch('/v1/messages', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({text: text})
            });
            input.value = '';
            input.focus();
        });
    </script>
</body>
</html>
`))

type indexData struct {
	Messages []pageMessage
	LastID   int64
}

type pageMessage struct {
	Text string
}

// handleIndex handles GET /: the snapshot page, superseded by the
// stream once the embedded EventSource connects.
func (s *RelayServer) handleIndex(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.journal.Snapshot()
	data := indexData{Messages: make([]pageMessage, 0, len(snapshot))}
	for _, m := range snapshot {
		data.Messages = append(data.Messages, pageMessage{Text: m.Text})
		data.LastID = m.ID
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("http: index render failed", "err", err)
	}
}
