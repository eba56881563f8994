package consts

// MailboxInbox is the only mailbox POP3 exposes.
const MailboxInbox = "INBOX"

// NoSubject replaces an absent or blank Subject header.
const NoSubject = "(no subject)"
