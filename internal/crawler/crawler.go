// Package crawler summarises the interactive surface of a loaded page so an
// action document can be drafted against it.
package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"
)

// Options configures the crawler behavior
type Options struct {
	SettleTimeout time.Duration // network idle and element wait, default 5s
	Logger        *zap.Logger
}

// Map inspects the page currently loaded in page.
func Map(ctx context.Context, page *rod.Page, opts Options) (*PageMap, error) {
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	p := page.Context(ctx)
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	// Persistent connections (websockets, polling) never go idle.
	p.Timeout(opts.SettleTimeout).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()

	spa, err := evalBool(p, detectSPAJS)
	if err != nil {
		return nil, err
	}
	if spa {
		log.Debug("crawler: single page app detected, waiting for elements")
		if err := waitForInteractive(ctx, p, opts.SettleTimeout); err != nil {
			return nil, err
		}
	}

	info, err := p.Info()
	if err != nil {
		return nil, fmt.Errorf("page info: %w", err)
	}

	var raw []rawElement
	if err := evalInto(p, elementsJS, &raw); err != nil {
		return nil, fmt.Errorf("extract elements: %w", err)
	}
	var nav []rawElement
	if err := evalInto(p, navigationJS, &nav); err != nil {
		return nil, fmt.Errorf("extract navigation: %w", err)
	}

	pm := &PageMap{URL: info.URL, Title: info.Title, IsSPA: spa}
	for _, r := range raw {
		pm.Elements = append(pm.Elements, r.element())
	}
	for _, r := range nav {
		pm.Navigation = append(pm.Navigation, r.navItem())
	}
	log.Info("crawler: page mapped",
		zap.String("url", pm.URL),
		zap.Int("elements", len(pm.Elements)),
		zap.Int("navigation", len(pm.Navigation)))
	return pm, nil
}

// waitForInteractive polls until at least one visible interactive element
// exists or timeout passes. Running out of time is not an error.
func waitForInteractive(ctx context.Context, p *rod.Page, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		res, err := p.Eval(countInteractiveJS)
		if err != nil {
			return fmt.Errorf("count elements: %w", err)
		}
		if res.Value.Int() > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-tick.C:
		}
	}
}

func evalBool(p *rod.Page, js string) (bool, error) {
	res, err := p.Eval(js)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func evalInto(p *rod.Page, js string, v any) error {
	res, err := p.Eval(js)
	if err != nil {
		return err
	}
	data, err := res.Value.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

const countInteractiveJS = `() => {
	const sel = 'button, [role="button"], input:not([type="hidden"]), textarea, a[href]';
	return Array.from(document.querySelectorAll(sel)).filter(el => el.offsetParent).length;
}`

const detectSPAJS = `() => !!(
	window.__REACT_DEVTOOLS_GLOBAL_HOOK__ || document.querySelector('[data-reactroot], #__next') ||
	window.__VUE__ || document.querySelector('[data-v-app]') ||
	window.ng || document.querySelector('[ng-version], app-root') ||
	document.querySelector('[class*="svelte-"]')
)`

const elementsJS = `() => {
	const ident = s => !!s && /^-?[_a-zA-Z][_a-zA-Z0-9-]*$/.test(s);
	const unique = s => { try { return document.querySelectorAll(s).length === 1; } catch (e) { return false; } };

	const selectorFor = el => {
		if (ident(el.id)) return '#' + el.id;
		if (el.name) return el.tagName.toLowerCase() + '[name="' + el.name + '"]';
		if (typeof el.className === 'string') {
			const cls = el.className.trim().split(/\s+/).filter(ident).slice(0, 2);
			const s = el.tagName.toLowerCase() + (cls.length ? '.' + cls.join('.') : '');
			if (cls.length && unique(s)) return s;
		}
		const parent = el.parentElement;
		if (!parent) return el.tagName.toLowerCase();
		const nth = Array.from(parent.children).indexOf(el) + 1;
		return selectorFor(parent) + ' > ' + el.tagName.toLowerCase() + ':nth-child(' + nth + ')';
	};

	const groups = [
		['button, [role="button"], input[type="submit"], input[type="button"]', el => 'button'],
		['input:not([type="hidden"]):not([type="submit"]):not([type="button"]), textarea', el => el.type || 'text'],
		['a[href]:not([href^="#"]):not([href^="javascript:"])', el => 'link'],
		['select', el => 'select'],
	];

	const out = [];
	const seen = new Set();
	for (const [query, kind] of groups) {
		for (const el of document.querySelectorAll(query)) {
			if (!el.offsetParent) continue;
			const selector = selectorFor(el);
			if (seen.has(selector)) continue;
			seen.add(selector);
			out.push({
				selector,
				type: kind(el),
				text: (el.textContent || el.value || '').trim().slice(0, 50),
				placeholder: el.placeholder || '',
				name: el.getAttribute('name') || '',
				id: el.id || '',
			});
		}
	}
	return out;
}`

const navigationJS = `() => {
	const out = [];
	const seen = new Set();
	for (const el of document.querySelectorAll('nav a, header a, [role="navigation"] a')) {
		const href = el.getAttribute('href');
		if (!el.offsetParent || !href || href === '#' || href.startsWith('javascript:') || seen.has(href)) continue;
		seen.add(href);
		out.push({
			selector: 'a[href="' + href.replace(/"/g, '\\"') + '"]',
			text: (el.textContent || '').trim().slice(0, 30),
			id: el.id || '',
			href,
		});
	}
	return out;
}`
