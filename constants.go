package irc

// Protocol commands which may be sent or received on a chat connection.
const (
	CmdBan     Command = "BAN"     // Add a nickname to a room's ban list (server-specific extension).
	CmdError   Command = "ERROR"   // Report a serious or fatal error to a peer, usually before closing the link.
	CmdJoin    Command = "JOIN"    // Join a room, optionally supplying its password.
	CmdKick    Command = "KICK"    // Request the forced removal of a user from a room.
	CmdList    Command = "LIST"    // List rooms, their member counts and topics.
	CmdMode    Command = "MODE"    // Change a room mode (+k/-k password, +b/-b ban, +o operator).
	CmdNames   Command = "NAMES"   // List the nicknames present in a room.
	CmdNick    Command = "NICK"    // Claim or change a nickname.
	CmdNotice  Command = "NOTICE"  // Send a notice to specific users or rooms.
	CmdPart    Command = "PART"    // Leave a room.
	CmdPing    Command = "PING"    // Test for the presence of an active peer.
	CmdPong    Command = "PONG"    // Reply to a PING message.
	CmdPrivmsg Command = "PRIVMSG" // Send a message to a room or directly to a user.
	CmdQuit    Command = "QUIT"    // Terminate the client session.
	CmdTopic   Command = "TOPIC"   // Change or view the topic of a room.
	CmdUnban   Command = "UNBAN"   // Remove a nickname from a room's ban list (server-specific extension).
)

// Server reply codes.
//
// The server speaks a subset of the classic IRC numerics plus two
// server-specific ones for the connection handshake (220, 230).
const (
	RplWelcome    Command = "220" // ":server 220 <nick> :Welcome to <servername>"
	RplLoginOK    Command = "230" // ":server 230 <nick> :Login successful"
	RplListStart  Command = "321" // ":server 321 <nick> Channel :Users Name"
	RplList       Command = "322" // ":server 322 <nick> <room> <# members> :<topic>"
	RplListEnd    Command = "323" // ":server 323 <nick> :End of /LIST"
	RplNoTopic    Command = "331" // ":server 331 <nick> <room> :No topic is set"
	RplTopic      Command = "332" // ":server 332 <nick> <room> :<topic>"
	RplNamReply   Command = "353" // ":server 353 <nick> = <room> :[@]<nick> *( " " [@]<nick> )" where '@' marks the operator
	RplEndOfNames Command = "366" // ":server 366 <nick> <room> :End of /NAMES list"
)

// Server error reply codes.
const (
	RplErrNoSuchNick       Command = "401" // ":server 401 <nick> <target> :No such nick/channel"
	RplErrNoSuchChannel    Command = "403" // ":server 403 <nick> <room> :No such channel"
	RplErrCannotSendToChan Command = "404" // ":server 404 <nick> <room> :Cannot send to channel"
	RplErrUnknownCommand   Command = "421" // ":server 421 <nick> <command> :Unknown command"
	RplErrErroneousNick    Command = "432" // ":server 432 <nick> <wanted> :Erroneous nickname"
	RplErrNicknameInUse    Command = "433" // ":server 433 <nick> <wanted> :Nickname is already in use"
	RplErrUserOnChannel    Command = "443" // ":server 443 <nick> <room> :You are already in the channel"
	RplErrNeedMoreParams   Command = "461" // ":server 461 <nick> <command> :Not enough parameters"
	RplErrChannelIsFull    Command = "471" // ":server 471 <nick> <room> :Cannot join channel (+l)"
	RplErrUnknownMode      Command = "472" // ":server 472 <nick> <char> :Unknown mode flag"
	RplErrBannedFromChan   Command = "474" // ":server 474 <nick> <room> :Cannot join channel (+b)"
	RplErrBadChannelKey    Command = "475" // ":server 475 <nick> <room> :Cannot join channel (+k)"
	RplErrChanOPrivsNeeded Command = "482" // ":server 482 <nick> <room> :You're not channel operator"
)
