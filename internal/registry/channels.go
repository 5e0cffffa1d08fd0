package registry

var binanceChannels = []string{"trade", "aggTrade", "ticker", "depth", "depthSnapshot", "bookTicker"}

var defaultChannels = map[string][]string{
	"bitmex": {
		"trade", "orderBookL2", "liquidation", "connected", "announcement", "chat",
		"publicNotifications", "instrument", "settlement", "funding", "insurance",
		"orderBookL2_25", "quote", "quoteBin1m", "quoteBin5m", "quoteBin1h", "quoteBin1d",
		"tradeBin1m", "tradeBin5m", "tradeBin1h", "tradeBin1d",
	},
	"coinbase": {
		"match", "subscriptions", "received", "open", "done", "change",
		"l2update", "ticker", "snapshot", "last_match", "full_snapshot",
	},
	"deribit": {
		"book", "deribit_price_index", "deribit_price_ranking", "estimated_expiration_price",
		"markprice.options", "perpetual", "trades", "ticker", "quote",
	},
	"cryptofacilities": {"trade", "trade_snapshot", "book", "book_snapshot", "ticker", "heartbeat"},
	"bitstamp":         {"live_trades", "live_orders", "diff_order_book"},
	"kraken":           {"trade", "ticker", "book", "spread"},
	"okex":             {"spot/ticker", "spot/trade", "spot/depth", "spot/depth_l2_tbt"},
	"okex-futures": {
		"futures/ticker", "futures/trade", "futures/depth", "futures/depth_l2_tbt",
		"futures/price_range", "futures/mark_price", "futures/estimated_price",
	},
	"okex-swap": {
		"swap/ticker", "swap/trade", "swap/depth", "swap/depth_l2_tbt",
		"swap/funding_rate", "swap/price_range", "swap/mark_price",
	},
	"binance":         binanceChannels,
	"binance-jersey":  binanceChannels,
	"binance-us":      binanceChannels,
	"binance-futures": append(append([]string(nil), binanceChannels...), "markPrice", "forceOrder"),
	"binance-dex":     {"trades", "marketDiff", "depthSnapshot"},
	"bitfinex":        {"trades", "book", "raw_book"},
	"bitfinex-derivatives": {
		"trades", "book", "raw_book", "status",
	},
	"bitflyer": {"lightning_executions", "lightning_board_snapshot", "lightning_board", "lightning_ticker"},
	"ftx":      {"orderbook", "trades", "instrument"},
	"gemini":   {"trade", "l2_updates", "auction_open", "auction_indicative", "auction_result"},
	"bybit":    {"trade", "instrument_info", "orderBookL2_25", "orderBook_200", "insurance", "liquidation"},
	"huobi":    {"depth", "detail", "trade", "bbo"},
	"huobi-dm": {
		"depth", "detail", "trade", "bbo", "basis", "liquidation_orders",
		"contract_info", "open_interest",
	},
}
