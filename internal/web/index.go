package web

// Portfolio dashboard: one card per position plus a signals sidebar.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>chainguardian</title>
  <link rel="preconnect" href="https://fonts.googleapis.com">
  <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root {
      --bg:#ffffff;
      --ink:#111111;
      --ink-mid:#4d4d4d;
      --ink-soft:#9c9c9c;
      --panel:#f6f6f6;
      --up:#1b9aaa;
      --down:#d7263d;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      min-height:100vh;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    #app {
      width:min(1400px, 96vw);
      margin:0 auto;
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:grid;
      grid-template-columns:1fr 360px;
      gap:2rem;
    }
    header { display:flex; justify-content:space-between; align-items:flex-start; gap:1rem; grid-column:1 / -1; }
    .eyebrow {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.6rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      margin:0;
    }
    .status, .pill {
      font-size:.6rem;
      text-transform:uppercase;
      letter-spacing:.1em;
      border:2px solid var(--ink);
      padding:.4rem .8rem;
      background:#fff;
      box-shadow:4px 4px 0 rgba(0,0,0,.15);
    }
    .pill.muted { color:var(--ink-mid); border-color:var(--ink-mid); }
    .grid {
      display:grid;
      grid-template-columns:repeat(auto-fit, minmax(280px, 1fr));
      gap:1.5rem;
      align-content:start;
    }
    .card {
      border:3px solid var(--ink);
      padding:1.2rem;
      background:#fff;
      box-shadow:8px 8px 0 rgba(0,0,0,.15);
      font-size:.75rem;
    }
    .card.closed { opacity:.55; }
    .card h2 {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.7rem;
      margin:0 0 1rem;
    }
    .row { display:flex; justify-content:space-between; padding:.2rem 0; }
    .row .label { color:var(--ink-mid); text-transform:uppercase; letter-spacing:.1em; font-size:.6rem; }
    .up { color:var(--up); }
    .down { color:var(--down); }
    aside { display:flex; flex-direction:column; gap:1rem; }
    .sidebar-title {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.6rem;
      text-transform:uppercase;
      letter-spacing:.15em;
      padding-bottom:.8rem;
      border-bottom:2px solid var(--ink);
      margin:0;
    }
    .signal { border:2px solid var(--ink); padding:.8rem; background:#fff; font-size:.7rem; }
    .empty-state {
      border:2px dashed var(--ink-soft);
      padding:2rem;
      text-align:center;
      font-size:.8rem;
      text-transform:uppercase;
      color:var(--ink-mid);
    }
    button {
      font-family:inherit;
      font-size:.6rem;
      text-transform:uppercase;
      border:2px solid var(--ink);
      background:#fff;
      padding:.4rem .8rem;
      cursor:pointer;
      box-shadow:4px 4px 0 rgba(0,0,0,.15);
    }
    @media (max-width:800px) {
      body { padding:1rem; }
      #app { grid-template-columns:1fr; padding:1.2rem; }
    }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <div>
        <p class="eyebrow">chainguardian</p>
        <p id="updated" class="pill muted">Waiting…</p>
      </div>
      <div>
        <button id="refresh">Refresh</button>
        <span id="sse-status" class="status">Connecting…</span>
      </div>
    </header>
    <section id="positions" class="grid">
      <div id="emptyState" class="empty-state">Waiting for the first refresh…</div>
    </section>
    <aside>
      <h3 class="sidebar-title">Sentiment</h3>
      <div id="sentiment" class="signal">Unknown</div>
      <h3 class="sidebar-title">Signals</h3>
      <div id="signals"></div>
      <h3 class="sidebar-title">Tracked addresses</h3>
      <div id="whales"></div>
    </aside>
  </div>
<script>
const statusEl = document.getElementById('sse-status');
const positionsEl = document.getElementById('positions');
const signalsEl = document.getElementById('signals');
const sentimentEl = document.getElementById('sentiment');
const whalesEl = document.getElementById('whales');
const updatedEl = document.getElementById('updated');

const fmt = (v, digits) => {
  if(v === null || v === undefined || v === ''){ return '—'; }
  const n = parseFloat(v);
  if(!Number.isFinite(n)){ return '—'; }
  return n.toLocaleString(undefined, { maximumFractionDigits: digits === undefined ? 8 : digits });
};

const signClass = (v) => {
  const n = parseFloat(v);
  if(!Number.isFinite(n) || n === 0){ return ''; }
  return n > 0 ? 'up' : 'down';
};

function row(label, value, cls){
  const r = document.createElement('div');
  r.className = 'row';
  const l = document.createElement('span');
  l.className = 'label';
  l.textContent = label;
  const v = document.createElement('span');
  v.textContent = value;
  if(cls){ v.className = cls; }
  r.append(l, v);
  return r;
}

function renderPositions(record){
  positionsEl.innerHTML = '';
  const keys = Object.keys(record.snapshots || {}).sort();
  if(keys.length === 0){
    const empty = document.createElement('div');
    empty.className = 'empty-state';
    empty.textContent = 'No orders recorded';
    positionsEl.appendChild(empty);
    return;
  }
  for(const key of keys){
    const s = record.snapshots[key];
    const card = document.createElement('article');
    const closed = !(parseFloat(s.remaining_qty) > 0);
    card.className = 'card' + (closed ? ' closed' : '');
    const title = document.createElement('h2');
    title.textContent = key + (closed ? ' (closed)' : '');
    card.appendChild(title);
    card.appendChild(row('Remaining', fmt(s.remaining_qty)));
    card.appendChild(row('Avg buy', fmt(s.avg_buy, 4)));
    card.appendChild(row('Price', s.current_price === null ? 'current price unknown' : fmt(s.current_price, 4)));
    card.appendChild(row('24h', s.change_24h === null ? '—' : fmt(s.change_24h, 2) + '%', signClass(s.change_24h)));
    card.appendChild(row('Unrealized', fmt(s.unrealized_value, 2), signClass(s.unrealized_value)));
    card.appendChild(row('Unrealized %', fmt(s.unrealized_pct, 2) + '%', signClass(s.unrealized_pct)));
    card.appendChild(row('Realized', fmt(s.realized, 2), signClass(s.realized)));
    if(s.windows){
      card.appendChild(row('7d / 30d', fmt(s.windows.change_7d, 1) + ' / ' + fmt(s.windows.change_30d, 1)));
      card.appendChild(row('RSI 14', fmt(s.windows.rsi_14, 1)));
    }
    positionsEl.appendChild(card);
  }
}

function renderSignals(record){
  signalsEl.innerHTML = '';
  const items = [];
  for(const p of record.profit_takes || []){
    items.push('TAKE PROFIT ' + p.key + ': sell ' + fmt(p.qty) + ' (gain ' + fmt(p.gain_pct, 1) + '% ≥ ' + fmt(p.threshold_pct, 0) + '%)');
  }
  for(const h of record.rebalance || []){
    items.push('REBALANCE ' + h.key + ': ' + h.action + ' ~' + fmt(h.value, 2) + ' (' + fmt(h.current_weight, 1) + '% → ' + fmt(h.target_weight, 1) + '%)');
  }
  if(record.sentiment && record.sentiment.fear_buy){
    items.push('FEAR BUY: index at ' + record.sentiment.index.value);
  }
  if(items.length === 0){
    items.push('No active signals');
  }
  for(const text of items){
    const el = document.createElement('div');
    el.className = 'signal';
    el.textContent = text;
    signalsEl.appendChild(el);
  }
}

function renderSentiment(record){
  const s = record.sentiment || {};
  const idx = s.index || {};
  sentimentEl.textContent = idx.value === null || idx.value === undefined
    ? 'Unknown'
    : idx.value + ' · ' + (s.band || idx.classification || '');
}

function renderWhales(record){
  whalesEl.innerHTML = '';
  for(const w of record.whales || []){
    const el = document.createElement('div');
    el.className = 'signal';
    el.textContent = w.chain + ' ' + w.address.slice(0, 12) + '… ' + (w.unavailable ? 'unavailable' : fmt(w.balance, 4));
    whalesEl.appendChild(el);
  }
}

function render(record){
  renderPositions(record);
  renderSignals(record);
  renderSentiment(record);
  renderWhales(record);
  updatedEl.textContent = new Date(record.ts).toLocaleTimeString([], { hour12:false });
}

function connectSSE(){
  const source = new EventSource('/api/stream');
  statusEl.textContent = 'Live';
  source.addEventListener('portfolio', (event) => {
    try{
      render(JSON.parse(event.data));
    }catch(err){
      console.error('payload parse', err);
    }
  });
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(connectSSE, 2000);
  });
}

document.getElementById('refresh').addEventListener('click', () => {
  fetch('/api/refresh', { method:'POST' });
});

fetch('/api/portfolio').then((r) => r.ok ? r.json() : null).then((record) => {
  if(record){ render(record); }
}).catch(() => {});

connectSSE();
</script>
</body>
</html>`
