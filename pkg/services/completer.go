package services

import "context"

// Completer はテキスト補完の依存です（プロンプトを渡し、テキストを受け取る）。
// 返るテキストは任意の不正な文字列でありうるため、呼び出し側で検証します。
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc は関数をCompleterとして扱うアダプタです。
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
