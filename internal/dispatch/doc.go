// Package dispatch delivers rendered reminder text to a target.
//
// A Dispatcher resolves the target, waits on the outbound rate limiter and
// makes exactly one transport call under a fixed timeout. Retrying is the
// scheduler's business: a failed occasion is released and picked up again
// on a later tick while it is still in its minute.
//
// Transports:
//   - wecom: WeCom group robot webhook, success iff HTTP 200 and errcode 0
//   - webhook: generic JSON POST, success iff 2xx
//   - telegram: Bot API sendMessage via telebot, Address is the chat id
package dispatch
