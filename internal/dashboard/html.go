package dashboard

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Headcount Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        * { box-sizing: border-box; }
        body { margin: 0; background: #0f172a; color: #e2e8f0; font-family: 'Segoe UI', sans-serif; }
        .app { max-width: 1180px; margin: 0 auto; padding: 18px; }
        .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 16px; }
        .title { font-size: 22px; font-weight: 600; }
        .badge { padding: 4px 12px; border-radius: 999px; font-size: 12px; font-weight: 600; text-transform: uppercase; }
        .badge-idle { background: #334155; color: #cbd5f5; }
        .badge-running { background: #14532d; color: #4ade80; }
        .badge-stopped { background: #7c2d12; color: #fdba74; }
        .grid { display: grid; grid-template-columns: 3fr 2fr; gap: 14px; }
        .panel { background: #1e293b; border: 1px solid #334155; border-radius: 10px; padding: 14px 16px; }
        .panel h2 { margin: 0 0 2px; font-size: 15px; }
        .panel-subtitle { margin: 0 0 10px; font-size: 12px; color: #94a3b8; }
        .stat-grid { display: grid; grid-template-columns: repeat(3, 1fr); gap: 10px; }
        .stat { background: #0f172a; border-radius: 8px; padding: 10px; text-align: center; }
        .stat-label { display: block; font-size: 11px; color: #94a3b8; text-transform: uppercase; }
        .stat-value { display: block; font-size: 26px; font-weight: 700; margin-top: 2px; }
        .stat-value.big { font-size: 40px; color: #4ade80; }
        #stream { width: 100%; height: auto; display: block; background: #000; border-radius: 6px; }
        .controls { display: flex; gap: 10px; margin-top: 12px; }
        .btn { border: none; border-radius: 6px; padding: 9px 22px; font-size: 14px; font-weight: 600; cursor: pointer; }
        .btn:disabled { opacity: 0.45; cursor: default; }
        .btn-start { background: #16a34a; color: #fff; }
        .btn-stop { background: #dc2626; color: #fff; }
        .message { margin-top: 10px; min-height: 18px; font-size: 13px; color: #fbbf24; }
        .slider-row { display: flex; align-items: center; gap: 10px; margin: 12px 0; }
        .slider-row label { flex: 0 0 150px; font-size: 13px; color: #cbd5f5; }
        .slider-row input[type=range] { flex: 1; }
        .slider-row .value { flex: 0 0 70px; text-align: right; font-variant-numeric: tabular-nums; }
        table { width: 100%; border-collapse: collapse; font-size: 12px; }
        th, td { padding: 5px 8px; text-align: left; border-bottom: 1px solid #334155; }
        th { color: #94a3b8; font-weight: 600; text-transform: uppercase; font-size: 11px; }
        tr.ignored td { color: #64748b; }
        tr.counted td { color: #e2e8f0; }
        .muted { color: #64748b; font-size: 13px; }
        .check-row { display: flex; align-items: center; gap: 8px; font-size: 13px; margin-bottom: 8px; }
        #history-canvas { width: 100%; height: 160px; background: #0f172a; border-radius: 6px; }
        .footer-note { margin: 10px 0 0; font-size: 12px; color: #64748b; }
        .list { margin-top: 10px; font-size: 12px; }
        .list-item { display: flex; justify-content: space-between; padding: 4px 0; border-bottom: 1px solid #273449; }
        .list-label { color: #94a3b8; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <div class="title">Headcount Monitor</div>
            <span class="badge badge-idle" id="state-badge">idle</span>
        </div>

        <div class="grid">
            <div class="panel" style="grid-row: span 3;">
                <h2>Live Feed</h2>
                <p class="panel-subtitle">Annotated MJPEG stream, color bars while no session is running</p>
                <img id="stream" src="/stream" alt="Live annotated stream">
                <div class="controls">
                    <button type="button" id="btn-start" class="btn btn-start">Start session</button>
                    <button type="button" id="btn-stop" class="btn btn-stop" disabled>Stop session</button>
                </div>
                <div class="message" id="message"></div>
                <p class="footer-note">Counted people get a green box with the confidence drawn above it.</p>
            </div>

            <div class="panel">
                <h2>Session</h2>
                <p class="panel-subtitle">Live counters for the current session</p>
                <div class="stat-grid">
                    <div class="stat">
                        <span class="stat-label">Headcount</span>
                        <span class="stat-value big" id="headcount">0</span>
                    </div>
                    <div class="stat">
                        <span class="stat-label">Frames</span>
                        <span class="stat-value" id="frames">0</span>
                    </div>
                    <div class="stat">
                        <span class="stat-label">Skipped</span>
                        <span class="stat-value" id="skipped">0</span>
                    </div>
                </div>
                <div class="list">
                    <div class="list-item">
                        <span class="list-label">Attendance log</span>
                        <span id="log-path">--</span>
                    </div>
                    <div class="list-item">
                        <span class="list-label">Rows written</span>
                        <span id="rows-written">0</span>
                    </div>
                    <div class="list-item">
                        <span class="list-label">Log write failures</span>
                        <span id="log-failures">0</span>
                    </div>
                </div>
            </div>

            <div class="panel">
                <h2>Thresholds</h2>
                <p class="panel-subtitle">Applied from the next processed frame onward</p>
                <div class="slider-row">
                    <label for="conf-slider">Confidence</label>
                    <input type="range" id="conf-slider" min="0" max="1" step="0.01" value="0.45">
                    <span class="value" id="conf-value">0.45</span>
                </div>
                <div class="slider-row">
                    <label for="area-slider">Min box area (px)</label>
                    <input type="range" id="area-slider" min="1000" max="50000" step="500" value="8000">
                    <span class="value" id="area-value">8000</span>
                </div>
            </div>

            <div class="panel">
                <h2>Raw Detections</h2>
                <p class="panel-subtitle">Everything the model returned for the current frame</p>
                <div class="check-row">
                    <input type="checkbox" id="debug-toggle">
                    <label for="debug-toggle">Show detection table</label>
                    <span class="muted" id="detections-frame"></span>
                </div>
                <div id="detections-panel" style="display:none;">
                    <table>
                        <thead>
                            <tr><th>#</th><th>Label</th><th>Conf</th><th>Box</th><th>Area</th><th>Counted</th></tr>
                        </thead>
                        <tbody id="detections-body">
                            <tr><td colspan="6" class="muted">Waiting for frames.</td></tr>
                        </tbody>
                    </table>
                </div>
            </div>

            <div class="panel" style="grid-column: span 2;">
                <h2>Attendance History</h2>
                <p class="panel-subtitle">Headcount per logged row, latest ten rows below</p>
                <canvas id="history-canvas"></canvas>
                <div id="history-empty" class="muted" style="margin-top:8px;">No attendance rows yet.</div>
                <table id="history-table" style="margin-top:10px; display:none;">
                    <thead>
                        <tr><th>Timestamp</th><th>Headcount</th></tr>
                    </thead>
                    <tbody id="history-body"></tbody>
                </table>
            </div>
        </div>
    </div>

    <script>
        var lastState = 'idle';
        var detectionSource = null;

        var stateBadge = document.getElementById('state-badge');
        var btnStart = document.getElementById('btn-start');
        var btnStop = document.getElementById('btn-stop');
        var confSlider = document.getElementById('conf-slider');
        var areaSlider = document.getElementById('area-slider');
        var confValue = document.getElementById('conf-value');
        var areaValue = document.getElementById('area-value');
        var debugToggle = document.getElementById('debug-toggle');

        function escapeHTML(s) {
            return String(s).replace(/[&<>"']/g, function (c) {
                return { '&': '&amp;', '<': '&lt;', '>': '&gt;', '"': '&quot;', "'": '&#39;' }[c];
            });
        }

        function showMessage(text) {
            document.getElementById('message').textContent = text || '';
        }

        function setBadge(state) {
            stateBadge.textContent = state;
            stateBadge.className = 'badge badge-' + state;
        }

        function renderStatus(payload) {
            var s = payload.session;
            var wasRunning = lastState === 'running';
            lastState = s.state;
            setBadge(s.state);
            document.getElementById('headcount').textContent = s.headcount;
            document.getElementById('frames').textContent = s.frames_processed;
            document.getElementById('skipped').textContent = s.frames_skipped;
            document.getElementById('log-failures').textContent = s.log_write_failures;
            document.getElementById('log-path').textContent = payload.log.path;
            document.getElementById('rows-written').textContent = payload.log.rows_written;
            showMessage(s.message);
            btnStart.disabled = s.state === 'running';
            btnStop.disabled = s.state !== 'running';
            if (wasRunning && s.state === 'stopped') {
                loadAttendance();
            }
        }

        function connectStatus() {
            var source = new EventSource('/api/status/stream');
            source.onmessage = function (event) {
                renderStatus(JSON.parse(event.data));
            };
        }

        function renderDetections(payload) {
            var rows = payload.detections.map(function (d, i) {
                return '<tr class="' + (d.counted ? 'counted' : 'ignored') + '">' +
                    '<td>' + (i + 1) + '</td>' +
                    '<td>' + escapeHTML(d.label || ('class ' + d.class_id)) + '</td>' +
                    '<td>' + d.confidence.toFixed(2) + '</td>' +
                    '<td>[' + d.box.join(', ') + ']</td>' +
                    '<td>' + d.area + '</td>' +
                    '<td>' + (d.counted ? 'yes' : 'no') + '</td>' +
                    '</tr>';
            });
            document.getElementById('detections-body').innerHTML =
                rows.join('') || '<tr><td colspan="6" class="muted">No detections in the current frame.</td></tr>';
            document.getElementById('detections-frame').textContent =
                'frame ' + payload.frame_number + ', headcount ' + payload.headcount;
        }

        function toggleDebug() {
            var panel = document.getElementById('detections-panel');
            if (debugToggle.checked) {
                panel.style.display = 'block';
                detectionSource = new EventSource('/api/detections/stream');
                detectionSource.onmessage = function (event) {
                    renderDetections(JSON.parse(event.data));
                };
            } else {
                panel.style.display = 'none';
                if (detectionSource) {
                    detectionSource.close();
                    detectionSource = null;
                }
            }
        }

        function drawChart(rows) {
            var canvas = document.getElementById('history-canvas');
            var ctx = canvas.getContext('2d');
            canvas.width = canvas.clientWidth;
            canvas.height = 160;
            var w = canvas.width, h = canvas.height;
            ctx.clearRect(0, 0, w, h);
            if (!rows.length) return;
            var max = 1;
            rows.forEach(function (r) { if (r.headcount > max) max = r.headcount; });
            ctx.strokeStyle = '#334155';
            ctx.beginPath();
            ctx.moveTo(28, h - 15);
            ctx.lineTo(w - 6, h - 15);
            ctx.stroke();
            ctx.fillStyle = '#94a3b8';
            ctx.font = '11px sans-serif';
            ctx.fillText(String(max), 4, 14);
            ctx.fillText('0', 4, h - 11);
            var stepX = rows.length > 1 ? (w - 40) / (rows.length - 1) : 0;
            ctx.strokeStyle = '#4ade80';
            ctx.lineWidth = 2;
            ctx.beginPath();
            rows.forEach(function (r, i) {
                var x = 28 + i * stepX;
                var y = h - 15 - (r.headcount / max) * (h - 30);
                if (i === 0) ctx.moveTo(x, y); else ctx.lineTo(x, y);
            });
            ctx.stroke();
        }

        function renderHistoryTable(rows) {
            var empty = document.getElementById('history-empty');
            var table = document.getElementById('history-table');
            if (!rows.length) {
                empty.style.display = 'block';
                table.style.display = 'none';
                return;
            }
            empty.style.display = 'none';
            table.style.display = 'table';
            var last = rows.slice(-10);
            document.getElementById('history-body').innerHTML = last.map(function (r) {
                return '<tr><td>' + escapeHTML(r.timestamp) + '</td><td>' + r.headcount + '</td></tr>';
            }).join('');
        }

        function loadAttendance() {
            fetch('/api/attendance?tail=0')
                .then(function (resp) { return resp.json(); })
                .then(function (body) {
                    drawChart(body.rows);
                    renderHistoryTable(body.rows);
                })
                .catch(function () {});
        }

        function startSession() {
            fetch('/api/session/start', { method: 'POST' })
                .then(function (resp) {
                    return resp.json().then(function (body) {
                        if (!resp.ok) { showMessage(body.error || 'start failed'); }
                        loadAttendance();
                    });
                })
                .catch(function () { showMessage('start request failed'); });
        }

        function stopSession() {
            fetch('/api/session/stop', { method: 'POST' })
                .then(function (resp) {
                    return resp.json().then(function (body) {
                        if (!resp.ok) { showMessage(body.error || 'stop failed'); }
                        loadAttendance();
                    });
                })
                .catch(function () { showMessage('stop request failed'); });
        }

        function postThresholds() {
            fetch('/api/thresholds', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({
                    confidence: parseFloat(confSlider.value),
                    min_area: parseInt(areaSlider.value, 10)
                })
            })
                .then(function (resp) {
                    if (!resp.ok) {
                        resp.json().then(function (body) { showMessage(body.error || 'thresholds rejected'); });
                    }
                })
                .catch(function () { showMessage('thresholds request failed'); });
        }

        function loadThresholds() {
            fetch('/api/thresholds')
                .then(function (resp) { return resp.json(); })
                .then(function (body) {
                    confSlider.value = body.confidence;
                    areaSlider.value = body.min_area;
                    confValue.textContent = Number(body.confidence).toFixed(2);
                    areaValue.textContent = body.min_area;
                })
                .catch(function () {});
        }

        btnStart.addEventListener('click', startSession);
        btnStop.addEventListener('click', stopSession);
        debugToggle.addEventListener('change', toggleDebug);
        confSlider.addEventListener('input', function () {
            confValue.textContent = Number(confSlider.value).toFixed(2);
        });
        areaSlider.addEventListener('input', function () {
            areaValue.textContent = areaSlider.value;
        });
        confSlider.addEventListener('change', postThresholds);
        areaSlider.addEventListener('change', postThresholds);

        setInterval(function () {
            if (lastState === 'running') { loadAttendance(); }
        }, 5000);

        window.addEventListener('load', function () {
            loadThresholds();
            loadAttendance();
            connectStatus();
        });
    </script>
</body>
</html>
`
