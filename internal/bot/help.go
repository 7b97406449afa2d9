package bot

const helpText = "明日方舟通行证盲盒指令：\n" +
	"1) /方舟盲盒 注册\n" +
	"2) /方舟盲盒 钱包\n" +
	"3) /方舟盲盒 流水\n" +
	"4) /方舟盲盒 库存\n" +
	"5) /方舟盲盒 列表\n" +
	"6) /方舟盲盒 市场 [种类ID]\n" +
	"7) /方舟盲盒 市场 上架 <种类ID> <奖品名> <价格> [数量]\n" +
	"8) /方舟盲盒 市场 购买 <种类ID> <奖品名> [数量]\n" +
	"9) /方舟盲盒 选择 <种类ID>\n" +
	"10) /方舟盲盒 开 <序号>\n" +
	"11) /方舟盲盒 状态 [种类ID]\n" +
	"12) /方舟盲盒 刷新 [种类ID]\n" +
	"13) /方舟盲盒 重载资源\n" +
	"14) /方舟盲盒 管理员 <列表|添加|移除|特殊定价|余额|黑名单> ..."
