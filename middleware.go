package dialogsdk

// ──────────────────────────────────────────────
// Middleware — onion-model pipeline around turn processing
// ──────────────────────────────────────────────
//
// Each middleware wraps the next layer. Call next() to proceed;
// skip it to intercept the turn.
//
// Usage:
//
//	engine.Use(func(tc *dialogsdk.TurnContext, next dialogsdk.NextFunc) {
//	    start := time.Now()
//	    next()
//	    log.Printf("turn took %s", time.Since(start))
//	})

// NextFunc proceeds to the next middleware or the core turn handler.
type NextFunc func()

// TurnMiddleware is the signature for all turn middleware functions.
type TurnMiddleware func(tc *TurnContext, next NextFunc)

// TurnContext is the shared context flowing through the pipeline for one
// inbound message.
type TurnContext struct {
	// UserKey identifies the conversation.
	UserKey string
	// Text is the inbound message.
	Text string
	// Classification is populated before the pipeline runs.
	Classification ClassificationResult
	// Reply is populated by the core handler; middleware may rewrite it.
	Reply *Reply
	// Extra is an arbitrary map for middleware to attach/read data.
	Extra map[string]interface{}
	// Handled is set to true once the core handler has run.
	Handled bool
}

// turnPipeline builds and executes an onion-model call chain.
type turnPipeline struct {
	middlewares []TurnMiddleware
}

func (p *turnPipeline) use(mw TurnMiddleware) {
	p.middlewares = append(p.middlewares, mw)
}

// execute runs the full pipeline ending with core.
//
// The chain is built from inside out:
//
//	mw[0].before → mw[1].before → core → mw[1].after → mw[0].after
func (p *turnPipeline) execute(tc *TurnContext, core func()) {
	if len(p.middlewares) == 0 {
		core()
		return
	}

	chain := core
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		mw := p.middlewares[i]
		next := chain
		chain = func() {
			mw(tc, next)
		}
	}

	chain()
}
