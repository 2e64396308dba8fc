package server

import (
	"strconv"

	"github.com/ais-project/keyd/resp"
	"github.com/ais-project/keyd/store"
)

func handlePing(cmd *resp.Command) []byte {
	if len(cmd.Args) == 0 {
		return resp.EncSimpleString("PONG")
	}
	return resp.EncBulkString(cmd.Args[0])
}

func handleEcho(cmd *resp.Command) []byte {
	if len(cmd.Args) != 1 {
		return resp.EncError("ERR wrong number of arguments for 'echo' command")
	}
	return resp.EncBulkString(cmd.Args[0])
}

func (c *Coordinator) handleConfigGet(cmd *resp.Command) []byte {
	if len(cmd.Args) != 2 || string(cmd.Args[0]) != "GET" {
		return resp.EncError("ERR wrong number of arguments for 'config|get' command")
	}
	key := string(cmd.Args[1])
	val, ok := c.cfg.StaticConfigGet(key)
	if !ok {
		return resp.EncArray(nil)
	}
	return resp.EncArrayOfBulk(key, val)
}

func (c *Coordinator) handleInfo(cmd *resp.Command) []byte {
	return resp.EncBulkString([]byte(c.Repl.InfoReplication()))
}

// handleSet implements `SET key value [PX ms]` (§4.2).
func handleSet(ks *store.Keyspace, cmd *resp.Command) []byte {
	if len(cmd.Args) != 2 && len(cmd.Args) != 4 {
		return resp.EncError("ERR wrong number of arguments for 'set' command")
	}
	key, value := string(cmd.Args[0]), string(cmd.Args[1])
	var pxMs int64
	hasPX := false
	if len(cmd.Args) == 4 {
		if string(cmd.Args[2]) != "PX" {
			return resp.EncError("ERR syntax error")
		}
		n, err := strconv.ParseInt(string(cmd.Args[3]), 10, 64)
		if err != nil || n < 0 {
			return resp.EncError("ERR value is not an integer or out of range")
		}
		pxMs, hasPX = n, true
	}
	ks.Set(key, value, pxMs, hasPX)
	return resp.EncSimpleString("OK")
}

func handleGet(ks *store.Keyspace, cmd *resp.Command) []byte {
	if len(cmd.Args) != 1 {
		return resp.EncError("ERR wrong number of arguments for 'get' command")
	}
	v, ok := ks.Get(string(cmd.Args[0]))
	if !ok {
		return resp.EncNullBulk()
	}
	return resp.EncBulkString([]byte(v))
}

func handleIncr(ks *store.Keyspace, cmd *resp.Command) []byte {
	if len(cmd.Args) != 1 {
		return resp.EncError("ERR wrong number of arguments for 'incr' command")
	}
	n, err := ks.Incr(string(cmd.Args[0]))
	if err != nil {
		return resp.EncError(errReply(err))
	}
	return resp.EncInteger(n)
}

func handleKeys(ks *store.Keyspace, cmd *resp.Command) []byte {
	keys := ks.Keys()
	parts := make([][]byte, len(keys))
	for i, k := range keys {
		parts[i] = resp.EncBulkString([]byte(k))
	}
	return resp.EncArray(parts)
}

func handleType(ks *store.Keyspace, cmd *resp.Command) []byte {
	if len(cmd.Args) != 1 {
		return resp.EncError("ERR wrong number of arguments for 'type' command")
	}
	return resp.EncSimpleString(ks.Type(string(cmd.Args[0])))
}

func handleDel(ks *store.Keyspace, cmd *resp.Command) []byte {
	if len(cmd.Args) != 1 {
		return resp.EncError("ERR wrong number of arguments for 'del' command")
	}
	return resp.EncInteger(int64(ks.Del(string(cmd.Args[0]))))
}

// errReply maps a store sentinel error to its RESP error text (§4.8
// ambient-stack note: command errors are plain values converted to wire
// errors at the dispatch boundary, never exceptions).
func errReply(err error) string {
	switch err {
	case store.ErrWrongType:
		return store.ErrWrongType.Error()
	case store.ErrNotAnInteger:
		return "ERR " + store.ErrNotAnInteger.Error()
	default:
		return "ERR " + err.Error()
	}
}
